// Package kv implements the shared key-value actor used both as the global
// metrics collector and, in a second instance per virtual user, as a flow's
// local variable scope.
package kv

import "encoding/json"

// Value is either a single Scalar or an ordered Array of Scalars. It mirrors
// the JSON value space (minus top-level objects, which callers keep as
// Scalars carrying a map[string]any) closely enough to round-trip through
// the script host without a lossy intermediate representation.
type Value struct {
	// Array holds the array form. Scalar is meaningless when this is true.
	IsArray bool
	Scalar  any
	Array   []any
}

// Scalar wraps a single dynamic value.
func Scalar(v any) Value {
	return Value{Scalar: v}
}

// NewArray wraps an ordered sequence of scalars.
func NewArray(items []any) Value {
	return Value{IsArray: true, Array: items}
}

// Interface returns the plain Go value (a []any for arrays, otherwise the
// scalar itself) suitable for JSON marshaling or handing to the script host.
func (v Value) Interface() any {
	if v.IsArray {
		return v.Array
	}
	return v.Scalar
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}
