// Package bundle defines PackedEntityBundle, the serialized record of one
// entity's state for one pack or unpack session.
package bundle

import (
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/holder"
	"github.com/graphpack/pkg/identity"
)

// Field is one named holder in a bundle.
type Field struct {
	Name   string
	Holder holder.Holder
}

// Bundle is an ordered, name-keyed record of holders plus the declared type
// name and format version of the entity it describes. Super, when set, is the
// bundle of the packable type the entity extends.
type Bundle struct {
	TypeName string
	Version  int
	// ID names the described entity. Packers set it; super bundles leave it zero.
	ID    identity.InstanceID
	Super *Bundle

	fields []Field
	index  map[string]int
}

// New creates an empty bundle for typeName at version.
func New(typeName string, version int) *Bundle {
	return &Bundle{
		TypeName: typeName,
		Version:  version,
		index:    make(map[string]int),
	}
}

// Put appends a field. Field names are unique within a bundle.
func (b *Bundle) Put(name string, h holder.Holder) error {
	if name == "" {
		return apperrors.Newf(apperrors.CodeStructural, "%s: empty field name", b.TypeName)
	}
	if b.index == nil {
		b.index = make(map[string]int)
	}
	if _, dup := b.index[name]; dup {
		return apperrors.Newf(apperrors.CodeStructural, "%s: duplicate field %q", b.TypeName, name)
	}
	b.index[name] = len(b.fields)
	b.fields = append(b.fields, Field{Name: name, Holder: h})
	return nil
}

// PutAll appends fields in order, stopping at the first error.
func (b *Bundle) PutAll(fields ...Field) error {
	for _, f := range fields {
		if err := b.Put(f.Name, f.Holder); err != nil {
			return err
		}
	}
	return nil
}

// WithSuper attaches the bundle of the extended type and returns b.
func (b *Bundle) WithSuper(super *Bundle) *Bundle {
	b.Super = super
	return b
}

// Get returns the holder stored under name.
func (b *Bundle) Get(name string) (holder.Holder, bool) {
	i, ok := b.index[name]
	if !ok {
		return holder.Holder{}, false
	}
	return b.fields[i].Holder, true
}

// Has reports whether a field named name exists.
func (b *Bundle) Has(name string) bool {
	_, ok := b.index[name]
	return ok
}

// Require returns the holder stored under name, or a structural error when
// the field is missing or holds a null declared mandatory.
func (b *Bundle) Require(name string) (holder.Holder, error) {
	h, ok := b.Get(name)
	if !ok {
		return holder.Holder{}, apperrors.Newf(apperrors.CodeStructural, "%s: missing field %q", b.TypeName, name)
	}
	if h.IsMandatory() && h.IsNull() {
		return holder.Holder{}, apperrors.Newf(apperrors.CodeStructural, "%s: mandatory field %q is null", b.TypeName, name)
	}
	return h, nil
}

// Fields returns the fields in insertion order. The slice must not be modified.
func (b *Bundle) Fields() []Field {
	return b.fields
}

// Len returns the number of fields, excluding the super bundle.
func (b *Bundle) Len() int {
	return len(b.fields)
}

// References returns every non-nil reference held by b and its super chain,
// in field order.
func (b *Bundle) References() []identity.Reference {
	var refs []identity.Reference
	for cur := b; cur != nil; cur = cur.Super {
		for _, f := range cur.fields {
			refs = append(refs, f.Holder.References()...)
		}
	}
	return refs
}

// Validate checks the bundle and its super chain for structural problems:
// empty type name, version below 1, mandatory nulls and unknown kinds.
func (b *Bundle) Validate() error {
	depth := 0
	for cur := b; cur != nil; cur = cur.Super {
		if cur.TypeName == "" {
			return apperrors.New(apperrors.CodeStructural, "bundle has no type name")
		}
		if cur.Version < 1 {
			return apperrors.Newf(apperrors.CodeStructural, "%s: version %d is below 1", cur.TypeName, cur.Version)
		}
		for _, f := range cur.fields {
			if !f.Holder.Kind().Valid() {
				return apperrors.Newf(apperrors.CodeStructural, "%s: field %q has unknown kind", cur.TypeName, f.Name)
			}
			if f.Holder.IsNull() && !f.Holder.Kind().Nullable() {
				return apperrors.Newf(apperrors.CodeStructural, "%s: field %q is null but %s cannot be null", cur.TypeName, f.Name, f.Holder.Kind())
			}
			if f.Holder.IsMandatory() && f.Holder.IsNull() {
				return apperrors.Newf(apperrors.CodeStructural, "%s: mandatory field %q is null", cur.TypeName, f.Name)
			}
		}
		depth++
		if depth > maxSuperDepth {
			return apperrors.Newf(apperrors.CodeStructural, "%s: super chain deeper than %d", b.TypeName, maxSuperDepth)
		}
	}
	return nil
}

const maxSuperDepth = 64
