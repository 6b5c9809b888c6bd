// Package normalize turns provider payloads of varying shape into canonical
// records. Every canonical field is resolved through an explicit, ordered list
// of candidate paths; the first candidate that is present and of the right type
// wins, and a field with no match is left nil. Shape drift never produces an error.
package normalize

import "strings"

// Path addresses a value by successive object keys.
type Path []string

// P builds a Path from a dotted expression such as "offense.totalYardsPerGame".
func P(expr string) Path {
	return strings.Split(expr, ".")
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Lookup walks v along p. It reports false when a segment is missing, when an
// intermediate value is not an object, or when the final value is null.
func (p Path) Lookup(v any) (any, bool) {
	cur := v
	for _, key := range p {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// Rule resolves one canonical field.
type Rule struct {
	Field string
	Paths []Path
}

// NewRule builds a Rule from dotted path expressions, in priority order.
func NewRule(field string, exprs ...string) Rule {
	paths := make([]Path, len(exprs))
	for i, expr := range exprs {
		paths[i] = P(expr)
	}
	return Rule{Field: field, Paths: paths}
}

// first returns the first candidate accepted by convert.
func first[T any](r Rule, record any, convert func(any) (T, bool)) (T, bool) {
	for _, path := range r.Paths {
		raw, ok := path.Lookup(record)
		if !ok {
			continue
		}
		if v, ok := convert(raw); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Text resolves the rule to a non-empty string.
func (r Rule) Text(record any) *string {
	s, ok := first(r, record, asString)
	if !ok {
		return nil
	}
	return &s
}

// Number resolves the rule to a finite number.
func (r Rule) Number(record any) *float64 {
	f, ok := first(r, record, asNumber)
	if !ok {
		return nil
	}
	return &f
}

// Object resolves the rule to a JSON object.
func (r Rule) Object(record any) map[string]any {
	obj, _ := first(r, record, asObject)
	return obj
}

// Envelope lists the wrappers a collection may be nested under, in priority
// order. When none is present the payload itself is the collection.
type Envelope []Path

// Unwrap extracts the records of payload. A collection that turns out to be a
// single object yields one record; null or scalars yield none. Array items that
// are not objects are skipped.
func (e Envelope) Unwrap(payload any) []map[string]any {
	collection := payload
	for _, path := range e {
		if v, ok := path.Lookup(payload); ok {
			collection = v
			break
		}
	}

	switch c := collection.(type) {
	case []any:
		records := make([]map[string]any, 0, len(c))
		for _, item := range c {
			if obj, ok := item.(map[string]any); ok {
				records = append(records, obj)
			}
		}
		return records
	case map[string]any:
		return []map[string]any{c}
	default:
		return []map[string]any{}
	}
}
