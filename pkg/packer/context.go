package packer

import (
	"reflect"

	"github.com/graphpack/pkg/bundle"
	"github.com/graphpack/pkg/collections"
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/holder"
	"github.com/graphpack/pkg/identity"
)

// Packable is implemented by every entity that can be packed.
//
// DescribeSelf must put every field that has to survive a round trip into
// the returned bundle and must obtain references to other entities through
// ctx rather than describing them inline. The bundle's type name must equal
// EntityType.
type Packable interface {
	EntityType() string
	DescribeSelf(ctx *Context) (*bundle.Bundle, error)
}

// Context is the per-session packing state handed to DescribeSelf. It
// assigns instance ids on first encounter and queues newly discovered
// entities for description.
type Context struct {
	ids    map[Packable]identity.InstanceID
	issued map[identity.InstanceID]struct{}
	queue  *collections.Queue[Packable]
	err    error
}

func newContext() *Context {
	return &Context{
		ids:    make(map[Packable]identity.InstanceID),
		issued: make(map[identity.InstanceID]struct{}),
		queue:  collections.NewQueue[Packable](64),
	}
}

// Ref returns the reference naming e, assigning an id and queueing e the
// first time it is seen. A nil entity yields the nil reference.
//
// Entities are identified by interface equality, so they should be
// pointers. A non-comparable entity value fails the pack session.
func (c *Context) Ref(e Packable) identity.Reference {
	if isNil(e) {
		return identity.NilReference
	}
	if !reflect.TypeOf(e).Comparable() {
		if c.err == nil {
			c.err = apperrors.Newf(apperrors.CodeContractViolation,
				"entity of type %T is not comparable and cannot be identified", e)
		}
		return identity.NilReference
	}
	if id, ok := c.ids[e]; ok {
		return identity.Ref(id)
	}

	id := identity.NewInstanceIDFor(e.EntityType())
	c.ids[e] = id
	c.issued[id] = struct{}{}
	c.queue.Enqueue(e)
	return identity.Ref(id)
}

// RefHolder wraps Ref(e) in a reference holder.
func (c *Context) RefHolder(e Packable, mandatory bool) (holder.Holder, error) {
	return holder.Ref(c.Ref(e), mandatory)
}

// Issued reports whether r was handed out by this context. The nil
// reference counts as issued.
func (c *Context) Issued(r identity.Reference) bool {
	if r.IsNil() {
		return true
	}
	_, ok := c.issued[r.ID]
	return ok
}

// RefsOf returns a reference for each element of es, in order.
func RefsOf[T Packable](c *Context, es []T) []identity.Reference {
	if es == nil {
		return nil
	}
	refs := make([]identity.Reference, len(es))
	for i, e := range es {
		refs[i] = c.Ref(e)
	}
	return refs
}

func isNil(e Packable) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
