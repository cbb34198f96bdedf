// Package codec converts domain values to and from the wire representation
// used on the message bus: UTF-8 text wrapping JSON documents.
//
// The codec is deliberately isolated from the transport so the payload
// format can change without touching connection logic.
package codec

import (
	"errors"
	"fmt"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

// ErrDecode is returned when an inbound payload is not valid UTF-8 or not
// valid JSON. Callers match it with errors.Is.
var ErrDecode = errors.New("codec: malformed payload")

// Encode serializes a value for publishing.
//
// Textual inputs (string or []byte) pass through untouched so callers can
// publish pre-built payloads without a double-encoding round trip. Anything
// else is marshaled to JSON text.
func Encode(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode %T: %w", v, err)
	}
	return data, nil
}

// Decode is the inverse of Encode for JSON payloads. It unmarshals data into
// out and reports ErrDecode when the bytes are not valid UTF-8 or cannot be
// parsed as the expected JSON shape.
func Decode(data []byte, out any) error {
	if !utf8.Valid(data) {
		return fmt.Errorf("%w: payload is not valid UTF-8", ErrDecode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}
