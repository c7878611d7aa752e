package application

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes an absent field from one explicitly set to its zero value.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns an Optional holding value.
func Some[T any](value T) Optional[T] {
	return Optional[T]{Value: value, Set: true}
}

// Or returns the held value when set and fallback otherwise.
func (o Optional[T]) Or(fallback T) T {
	if o.Set {
		return o.Value
	}
	return fallback
}

// UnmarshalJSON marks the field as set whenever the key is present, including null.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON encodes the held value, or null when unset.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
