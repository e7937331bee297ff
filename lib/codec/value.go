package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/go-json-experiment/json"
)

// ValueCodec turns values into the bytes stored in a ByteStore and back.
// Encoding the same value twice must produce the same bytes: the collection
// layer compares encodings to detect default values and to implement
// compare-and-swap.
type ValueCodec interface {
	// Name identifies the codec in logs and configuration
	Name() string

	// Encode serializes v
	Encode(v any) ([]byte, error)

	// Decode deserializes b into the value pointed to by ptr
	Decode(b []byte, ptr any) error
}

// ByName returns the codec registered under name ("gob" or "json").
func ByName(name string) (ValueCodec, error) {
	switch name {
	case "gob", "":
		return Gob(), nil
	case "json":
		return JSON(), nil
	default:
		return nil, fmt.Errorf("unknown value codec %q (must be gob or json)", name)
	}
}

// --------------------------------------------------------------------------
// GOB
// --------------------------------------------------------------------------

// Gob returns a codec using Go's gob format. It is the default codec.
// Gob writes maps in iteration order, so values containing maps are not
// encoded deterministically; use JSON for those.
func Gob() ValueCodec {
	return gobCodec{}
}

type gobCodec struct{}

func (gobCodec) Name() string { return "gob" }

func (gobCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Decode(b []byte, ptr any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(ptr)
}

// --------------------------------------------------------------------------
// JSON
// --------------------------------------------------------------------------

// JSON returns a codec using JSON v2 with deterministic output (sorted map
// keys), which makes it safe for values containing maps.
func JSON() ValueCodec {
	return jsonCodec{}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v, json.Deterministic(true))
}

func (jsonCodec) Decode(b []byte, ptr any) error {
	return json.Unmarshal(b, ptr)
}
