package validation

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Body is a parsed JSON object request body.
type Body struct {
	fields map[string]json.RawMessage
	raw    []byte
}

// Has reports whether key is present with a non-null value.
func (b Body) Has(key string) bool {
	v, ok := b.fields[key]
	return ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Keys returns the body keys in sorted order.
func (b Body) Keys() []string {
	keys := make([]string, 0, len(b.fields))
	for k := range b.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Present returns the names that are in the body with a non-null value,
// in the order given.
func (b Body) Present(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if b.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// Raw returns the value of key as raw JSON.
func (b Body) Raw(key string) (json.RawMessage, bool) {
	v, ok := b.fields[key]
	return v, ok
}

// Decode unmarshals the whole body into dst.
func (b Body) Decode(dst any) error {
	if len(b.raw) == 0 {
		return nil
	}
	return json.Unmarshal(b.raw, dst)
}
