package file

import (
	"encoding/json"
)

// Serializer encodes a chunk into the bytes written for it. The file inserter appends a
// newline after each chunk.
type Serializer[T any] interface {
	Marshal(T) ([]byte, error)
}

// JSON serializes each chunk as a JSON document
type JSON[T any] struct {
	Pretty bool // whether to pretty-print the output
}

func (s JSON[T]) Marshal(chunk T) ([]byte, error) {
	if s.Pretty {
		return json.MarshalIndent(chunk, "", "  ")
	}

	return json.Marshal(chunk)
}

// Raw writes chunks verbatim, useful when the producer has already encoded them
type Raw[T ~string | ~[]byte] struct{}

func (Raw[T]) Marshal(chunk T) ([]byte, error) {
	return []byte(chunk), nil
}
