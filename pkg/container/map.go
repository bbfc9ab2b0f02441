package container

import (
	"github.com/graphpack/pkg/bundle"
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/holder"
	"github.com/graphpack/pkg/identity"
	"github.com/graphpack/pkg/packer"
	"github.com/graphpack/pkg/registry"
)

const (
	indexField = "index"
	keyField   = "key"
	valueField = "value"
)

// MapTypeName is the entity type name of maps using the given codecs.
func MapTypeName[K comparable, V any](keys Codec[K], values Codec[V]) string {
	return "container.Map[" + keys.Name() + "," + values.Name() + "]"
}

// PairTypeName is the entity type name of the pair entities of such maps.
func PairTypeName[K comparable, V any](keys Codec[K], values Codec[V]) string {
	return "container.Pair[" + keys.Name() + "," + values.Name() + "]"
}

// Map is a key/value mapping packed as one entity plus one pair entity per
// entry. Iteration follows insertion order, which survives a round trip.
type Map[K comparable, V any] struct {
	order   []K
	entries map[K]V

	keys     Codec[K]
	values   Codec[V]
	pairRefs []identity.Reference
}

// NewMap creates an empty map using the given codecs.
func NewMap[K comparable, V any](keys Codec[K], values Codec[V]) *Map[K, V] {
	return &Map[K, V]{
		entries: make(map[K]V),
		keys:    keys,
		values:  values,
	}
}

// Set stores v under k. A new key is appended to the iteration order.
func (m *Map[K, V]) Set(k K, v V) {
	if _, ok := m.entries[k]; !ok {
		m.order = append(m.order, k)
	}
	m.entries[k] = v
}

// Get returns the value stored under k.
func (m *Map[K, V]) Get(k K) (V, bool) {
	v, ok := m.entries[k]
	return v, ok
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int { return len(m.order) }

// Keys returns the keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	return append([]K(nil), m.order...)
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map[K, V]) Range(fn func(k K, v V) bool) {
	for _, k := range m.order {
		if !fn(k, m.entries[k]) {
			return
		}
	}
}

// EntityType implements packer.Packable.
func (m *Map[K, V]) EntityType() string { return MapTypeName(m.keys, m.values) }

// DescribeSelf implements packer.Packable.
func (m *Map[K, V]) DescribeSelf(pc *packer.Context) (*bundle.Bundle, error) {
	b := bundle.New(m.EntityType(), version)
	if err := b.Put(sizeField, holder.Int(int32(len(m.order)))); err != nil {
		return nil, err
	}
	for i, k := range m.order {
		p := &Pair[K, V]{Key: k, Value: m.entries[k], index: i, keys: m.keys, values: m.values}
		h, err := pc.RefHolder(p, true)
		if err != nil {
			return nil, err
		}
		if err := b.Put(elementName(i), h); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// CompleteSelf implements registry.Completer. It waits for every pair to
// finish, then orders entries by each pair's index field.
func (m *Map[K, V]) CompleteSelf(uc registry.UnpackContext) (registry.Status, error) {
	if !registry.AllFinished(uc, m.pairRefs...) {
		return registry.NotYetReady, nil
	}

	size := len(m.pairRefs)
	slots := make([]*Pair[K, V], size)
	for _, r := range m.pairRefs {
		p, err := registry.ResolveAs[*Pair[K, V]](uc, r)
		if err != nil {
			return 0, err
		}
		if p.index < 0 || p.index >= size || slots[p.index] != nil {
			return 0, apperrors.Newf(apperrors.CodeStructural,
				"%s: pair index %d out of range or repeated", m.EntityType(), p.index)
		}
		slots[p.index] = p
	}

	order := make([]K, 0, size)
	entries := make(map[K]V, size)
	for _, p := range slots {
		if _, dup := entries[p.Key]; dup {
			return 0, apperrors.Newf(apperrors.CodeStructural, "%s: duplicate key %v", m.EntityType(), p.Key)
		}
		order = append(order, p.Key)
		entries[p.Key] = p.Value
	}
	m.order = order
	m.entries = entries
	m.pairRefs = nil
	return registry.Done, nil
}

// Pair is one map entry packed as its own entity.
type Pair[K comparable, V any] struct {
	Key   K
	Value V

	index  int
	keys   Codec[K]
	values Codec[V]
	key    holder.Holder
	value  holder.Holder
}

// EntityType implements packer.Packable.
func (p *Pair[K, V]) EntityType() string { return PairTypeName(p.keys, p.values) }

// DescribeSelf implements packer.Packable.
func (p *Pair[K, V]) DescribeSelf(pc *packer.Context) (*bundle.Bundle, error) {
	kh, err := p.keys.Encode(pc, p.Key)
	if err != nil {
		return nil, err
	}
	vh, err := p.values.Encode(pc, p.Value)
	if err != nil {
		return nil, err
	}
	b := bundle.New(p.EntityType(), version)
	return b, b.PutAll(
		bundle.Field{Name: indexField, Holder: holder.Int(int32(p.index))},
		bundle.Field{Name: keyField, Holder: kh},
		bundle.Field{Name: valueField, Holder: vh},
	)
}

// CompleteSelf implements registry.Completer.
func (p *Pair[K, V]) CompleteSelf(uc registry.UnpackContext) (registry.Status, error) {
	k, ready, err := p.keys.Decode(uc, p.key)
	if err != nil || !ready {
		return registry.NotYetReady, err
	}
	v, ready, err := p.values.Decode(uc, p.value)
	if err != nil || !ready {
		return registry.NotYetReady, err
	}
	p.Key, p.Value = k, v
	return registry.Done, nil
}

// RegisterMap registers the map and pair factories for the given codecs.
func RegisterMap[K comparable, V any](reg *registry.Registry, keys Codec[K], values Codec[V]) error {
	err := reg.Register(MapTypeName(keys, values), version, version,
		func(b *bundle.Bundle, _ registry.UnpackContext) (any, error) {
			elements, err := readElements(b)
			if err != nil {
				return nil, err
			}
			refs := make([]identity.Reference, len(elements))
			for i, h := range elements {
				if refs[i], err = h.AsRef(); err != nil {
					return nil, err
				}
				if refs[i].IsNil() {
					return nil, apperrors.Newf(apperrors.CodeStructural, "%s: null pair %s", b.TypeName, elementName(i))
				}
			}
			return &Map[K, V]{entries: make(map[K]V), keys: keys, values: values, pairRefs: refs}, nil
		})
	if err != nil {
		return err
	}

	return reg.Register(PairTypeName(keys, values), version, version,
		func(b *bundle.Bundle, _ registry.UnpackContext) (any, error) {
			index, err := b.Int(indexField)
			if err != nil {
				return nil, err
			}
			kh, err := b.Require(keyField)
			if err != nil {
				return nil, err
			}
			vh, err := b.Require(valueField)
			if err != nil {
				return nil, err
			}
			return &Pair[K, V]{index: int(index), keys: keys, values: values, key: kh, value: vh}, nil
		})
}
