package retrier

import "errors"

// Temporary is implemented by errors that know whether a repeat of the failed
// call could succeed, such as a provider reply of 429 or 503.
type Temporary interface {
	Temporary() bool
}

// IsTemporary reports whether err, or an error it wraps, declares itself temporary.
// Errors that say nothing about it are treated as permanent.
func IsTemporary(err error) bool {
	var temp Temporary
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return false
}
