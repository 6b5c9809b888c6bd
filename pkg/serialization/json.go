package serialization

import (
	"io"

	jsoniter "github.com/json-iterator/go"
)

// api mirrors encoding/json, except that numbers decoded into interface values
// stay json.Number so provider figures are not silently rounded.
var api = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// JSONDecoder returns a Decoder reading JSON from r.
func JSONDecoder(r io.Reader) Decoder {
	return api.NewDecoder(r)
}

// JSONEncoder returns an Encoder writing JSON to w.
func JSONEncoder(w io.Writer) Encoder {
	return api.NewEncoder(w)
}

// Marshal encodes v as JSON.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// Unmarshal decodes JSON data into v.
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}
