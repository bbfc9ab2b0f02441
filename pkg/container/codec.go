// Package container lets ordered lists and key/value maps take part in
// packing as synthetic entities.
//
// A container bundle carries an explicit "size" field and one holder per
// element named "_0", "_1", ... Elements are addressed by index and never
// recovered by sorting field names. Map entries are packed as nested pair
// entities that carry their own index.
package container

import (
	"github.com/graphpack/pkg/holder"
	"github.com/graphpack/pkg/packer"
	"github.com/graphpack/pkg/registry"
)

// Codec converts container elements to holders and back.
type Codec[T any] interface {
	// Name identifies the element encoding inside container type names.
	Name() string
	Encode(pc *packer.Context, v T) (holder.Holder, error)
	// Decode returns ready=false when the element refers to an entity that
	// has not finished yet.
	Decode(uc registry.UnpackContext, h holder.Holder) (v T, ready bool, err error)
}

type stringCodec struct{}

// Strings encodes string elements.
func Strings() Codec[string] { return stringCodec{} }

func (stringCodec) Name() string { return "string" }

func (stringCodec) Encode(_ *packer.Context, v string) (holder.Holder, error) {
	return holder.String(v), nil
}

func (stringCodec) Decode(_ registry.UnpackContext, h holder.Holder) (string, bool, error) {
	s, _, err := h.AsString()
	return s, err == nil, err
}

type int64Codec struct{}

// Int64s encodes int64 elements.
func Int64s() Codec[int64] { return int64Codec{} }

func (int64Codec) Name() string { return "long" }

func (int64Codec) Encode(_ *packer.Context, v int64) (holder.Holder, error) {
	return holder.Long(v), nil
}

func (int64Codec) Decode(_ registry.UnpackContext, h holder.Holder) (int64, bool, error) {
	v, err := h.AsLong()
	return v, err == nil, err
}

type float64Codec struct{}

// Float64s encodes float64 elements.
func Float64s() Codec[float64] { return float64Codec{} }

func (float64Codec) Name() string { return "double" }

func (float64Codec) Encode(_ *packer.Context, v float64) (holder.Holder, error) {
	return holder.Double(v), nil
}

func (float64Codec) Decode(_ registry.UnpackContext, h holder.Holder) (float64, bool, error) {
	v, err := h.AsDouble()
	return v, err == nil, err
}

type boolCodec struct{}

// Bools encodes bool elements.
func Bools() Codec[bool] { return boolCodec{} }

func (boolCodec) Name() string { return "bool" }

func (boolCodec) Encode(_ *packer.Context, v bool) (holder.Holder, error) {
	return holder.Bool(v), nil
}

func (boolCodec) Decode(_ registry.UnpackContext, h holder.Holder) (bool, bool, error) {
	v, err := h.AsBool()
	return v, err == nil, err
}

type bytesCodec struct{}

// Bytes encodes byte slice elements. A nil slice round-trips as nil.
func Bytes() Codec[[]byte] { return bytesCodec{} }

func (bytesCodec) Name() string { return "bytes" }

func (bytesCodec) Encode(_ *packer.Context, v []byte) (holder.Holder, error) {
	return holder.Array(v, false)
}

func (bytesCodec) Decode(_ registry.UnpackContext, h holder.Holder) ([]byte, bool, error) {
	v, err := holder.ArrayOf[byte](h)
	return v, err == nil, err
}

type entityCodec[T packer.Packable] struct {
	name string
}

// Entities encodes elements as references to other entities. name should be
// the element's entity type name. Decoding waits until the referenced
// entity is finished.
func Entities[T packer.Packable](name string) Codec[T] {
	return entityCodec[T]{name: name}
}

func (c entityCodec[T]) Name() string { return "entity:" + c.name }

func (c entityCodec[T]) Encode(pc *packer.Context, v T) (holder.Holder, error) {
	return pc.RefHolder(v, false)
}

func (c entityCodec[T]) Decode(uc registry.UnpackContext, h holder.Holder) (T, bool, error) {
	var zero T
	ref, err := h.AsRef()
	if err != nil {
		return zero, false, err
	}
	if ref.IsNil() {
		return zero, true, nil
	}
	if !uc.IsFinished(ref) {
		return zero, false, nil
	}
	v, err := registry.ResolveAs[T](uc, ref)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}
