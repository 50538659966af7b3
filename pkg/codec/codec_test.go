package codec

import (
	"strings"
	"testing"
)

type job struct {
	ID    string `json:"id" yaml:"id"`
	Tries int    `json:"tries" yaml:"tries"`
}

func TestJSONRoundTrip(t *testing.T) {
	c := JSON[job]()
	data, err := c.Encode(job{ID: "a", Tries: 2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(data) != `{"id":"a","tries":2}` {
		t.Fatalf("unexpected encoding: %s", data)
	}
	got, err := c.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != (job{ID: "a", Tries: 2}) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestJSONDecodeError(t *testing.T) {
	_, err := JSON[job]().Decode([]byte("{"))
	if err == nil || !strings.Contains(err.Error(), "unmarshal") {
		t.Fatalf("want unmarshal error, got %v", err)
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	c := YAML[job]()
	data, err := c.Encode(job{ID: "b", Tries: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := c.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "b" || got.Tries != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestBytesDecodeCopies(t *testing.T) {
	src := []byte("abc")
	out, _ := Bytes().Decode(src)
	src[0] = 'z'
	if string(out) != "abc" {
		t.Fatalf("decode must not alias input: %s", out)
	}
}
