package container

import (
	"strconv"

	"github.com/graphpack/pkg/bundle"
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/holder"
	"github.com/graphpack/pkg/packer"
	"github.com/graphpack/pkg/registry"
)

const (
	sizeField = "size"
	version   = 1
)

func elementName(i int) string {
	return "_" + strconv.Itoa(i)
}

// ListTypeName is the entity type name of lists using codec.
func ListTypeName[T any](codec Codec[T]) string {
	return "container.List[" + codec.Name() + "]"
}

// List is an ordered collection packed as one entity.
type List[T any] struct {
	Items []T

	codec   Codec[T]
	pending []holder.Holder
}

// NewList creates a list of items encoded with codec.
func NewList[T any](codec Codec[T], items ...T) *List[T] {
	return &List[T]{Items: items, codec: codec}
}

// Len returns the number of items.
func (l *List[T]) Len() int { return len(l.Items) }

// EntityType implements packer.Packable.
func (l *List[T]) EntityType() string { return ListTypeName(l.codec) }

// DescribeSelf implements packer.Packable.
func (l *List[T]) DescribeSelf(pc *packer.Context) (*bundle.Bundle, error) {
	b := bundle.New(l.EntityType(), version)
	if err := b.Put(sizeField, holder.Int(int32(len(l.Items)))); err != nil {
		return nil, err
	}
	for i, item := range l.Items {
		h, err := l.codec.Encode(pc, item)
		if err != nil {
			return nil, err
		}
		if err := b.Put(elementName(i), h); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// CompleteSelf implements registry.Completer. Items is only replaced once
// every element decodes.
func (l *List[T]) CompleteSelf(uc registry.UnpackContext) (registry.Status, error) {
	items := make([]T, len(l.pending))
	for i, h := range l.pending {
		v, ready, err := l.codec.Decode(uc, h)
		if err != nil {
			return 0, err
		}
		if !ready {
			return registry.NotYetReady, nil
		}
		items[i] = v
	}
	l.Items = items
	l.pending = nil
	return registry.Done, nil
}

// RegisterList registers the factory for lists using codec.
func RegisterList[T any](reg *registry.Registry, codec Codec[T]) error {
	return reg.Register(ListTypeName(codec), version, version,
		func(b *bundle.Bundle, _ registry.UnpackContext) (any, error) {
			elements, err := readElements(b)
			if err != nil {
				return nil, err
			}
			return &List[T]{codec: codec, pending: elements}, nil
		})
}

// readElements returns the holders "_0" .. "_{size-1}" and rejects bundles
// carrying anything else.
func readElements(b *bundle.Bundle) ([]holder.Holder, error) {
	size, err := b.Int(sizeField)
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, apperrors.Newf(apperrors.CodeStructural, "%s: negative size %d", b.TypeName, size)
	}
	if b.Len() != int(size)+1 {
		return nil, apperrors.Newf(apperrors.CodeStructural,
			"%s: size %d does not match %d element fields", b.TypeName, size, b.Len()-1)
	}

	elements := make([]holder.Holder, size)
	for i := range elements {
		h, ok := b.Get(elementName(i))
		if !ok {
			return nil, apperrors.Newf(apperrors.CodeStructural, "%s: missing element %s", b.TypeName, elementName(i))
		}
		elements[i] = h
	}
	return elements, nil
}
