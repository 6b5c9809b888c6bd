package serialization

import "io"

const (
	// JSONType represents the serialization type for JSON format.
	JSONType = "json"
)

// Decoder and Encoder are the interface for serialization.
type Decoder interface {
	Decode(v any) error
}

// Encoder and Decoder are the interface for serialization.
type Encoder interface {
	Encode(v any) error
}

// DecoderFunc builds a Decoder over r.
type DecoderFunc func(r io.Reader) Decoder

// EncoderFunc builds an Encoder over w.
type EncoderFunc func(w io.Writer) Encoder
