// Package codec converts queue elements to and from their stored form.
package codec

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Codec encodes application values into the bytes stored in a list element
// and decodes them back. Element identity on the store side is the encoded
// bytes, so Remove and similar operations depend on a deterministic Encode.
type Codec[V any] interface {
	Encode(value V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// JSONCodec stores elements as JSON documents.
type JSONCodec[V any] struct{}

// JSON returns a codec backed by encoding/json.
func JSON[V any]() JSONCodec[V] {
	return JSONCodec[V]{}
}

// Encode marshals value as JSON.
func (JSONCodec[V]) Encode(value V) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal element: %w", err)
	}
	return data, nil
}

// Decode unmarshals a JSON element.
func (JSONCodec[V]) Decode(data []byte) (V, error) {
	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("failed to unmarshal element: %w", err)
	}
	return value, nil
}

// YAMLCodec stores elements as YAML documents.
type YAMLCodec[V any] struct{}

// YAML returns a codec backed by gopkg.in/yaml.v3.
func YAML[V any]() YAMLCodec[V] {
	return YAMLCodec[V]{}
}

// Encode marshals value as YAML.
func (YAMLCodec[V]) Encode(value V) ([]byte, error) {
	data, err := yaml.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal element: %w", err)
	}
	return data, nil
}

// Decode unmarshals a YAML element.
func (YAMLCodec[V]) Decode(data []byte) (V, error) {
	var value V
	if err := yaml.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("failed to unmarshal element: %w", err)
	}
	return value, nil
}

// StringCodec stores strings as their raw bytes.
type StringCodec struct{}

// String returns a codec for plain string elements.
func String() StringCodec {
	return StringCodec{}
}

func (StringCodec) Encode(value string) ([]byte, error) { return []byte(value), nil }

func (StringCodec) Decode(data []byte) (string, error) { return string(data), nil }

// BytesCodec stores byte slices unchanged.
type BytesCodec struct{}

// Bytes returns a pass-through codec.
func Bytes() BytesCodec {
	return BytesCodec{}
}

func (BytesCodec) Encode(value []byte) ([]byte, error) { return value, nil }

func (BytesCodec) Decode(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
