package bundle

import (
	"github.com/graphpack/pkg/holder"
	"github.com/graphpack/pkg/identity"
)

// Typed getters for factories. Each reports a missing field or a kind
// mismatch as a structural error.

// Bool reads a bool field.
func (b *Bundle) Bool(name string) (bool, error) {
	h, err := b.Require(name)
	if err != nil {
		return false, err
	}
	return h.AsBool()
}

// Int reads an int field.
func (b *Bundle) Int(name string) (int32, error) {
	h, err := b.Require(name)
	if err != nil {
		return 0, err
	}
	return h.AsInt()
}

// Long reads a long field.
func (b *Bundle) Long(name string) (int64, error) {
	h, err := b.Require(name)
	if err != nil {
		return 0, err
	}
	return h.AsLong()
}

// Double reads a double field.
func (b *Bundle) Double(name string) (float64, error) {
	h, err := b.Require(name)
	if err != nil {
		return 0, err
	}
	return h.AsDouble()
}

// String reads a string field. A null string reads as "".
func (b *Bundle) String(name string) (string, error) {
	h, err := b.Require(name)
	if err != nil {
		return "", err
	}
	s, _, err := h.AsString()
	return s, err
}

// Bytes reads a byte array field.
func (b *Bundle) Bytes(name string) ([]byte, error) {
	h, err := b.Require(name)
	if err != nil {
		return nil, err
	}
	return holder.ArrayOf[byte](h)
}

// Ref reads a reference field.
func (b *Bundle) Ref(name string) (identity.Reference, error) {
	h, err := b.Require(name)
	if err != nil {
		return identity.NilReference, err
	}
	return h.AsRef()
}

// Refs reads a reference array field.
func (b *Bundle) Refs(name string) ([]identity.Reference, error) {
	h, err := b.Require(name)
	if err != nil {
		return nil, err
	}
	return h.AsRefs()
}
