// Package identity allocates the identifiers that name entities and entity
// types during packing and unpacking.
//
// Serial numbers come from a single process-wide atomic counter, so
// independent sessions running on different goroutines never hand out the
// same InstanceID. Type identifiers are interned per type name and are
// stable for the lifetime of the process.
package identity

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// TypeID identifies a packable type within this process.
type TypeID uint32

// NoType is the zero TypeID. It is never assigned to a name.
const NoType TypeID = 0

// InstanceID names one entity for the duration of a pack or unpack session.
type InstanceID struct {
	Type   TypeID
	Serial uint64
}

// IsZero reports whether the id is unset.
func (id InstanceID) IsZero() bool {
	return id.Serial == 0
}

// String renders the id as "type:serial".
func (id InstanceID) String() string {
	return fmt.Sprintf("%d:%d", id.Type, id.Serial)
}

// Less orders ids by serial, then by type.
func (id InstanceID) Less(other InstanceID) bool {
	if id.Serial != other.Serial {
		return id.Serial < other.Serial
	}
	return id.Type < other.Type
}

var serials atomic.Uint64

// NextSerial returns the next process-unique serial number. It never returns 0.
func NextSerial() uint64 {
	return serials.Add(1)
}

// NewInstanceID allocates a fresh InstanceID for an entity of type t.
func NewInstanceID(t TypeID) InstanceID {
	return InstanceID{Type: t, Serial: NextSerial()}
}

// NewInstanceIDFor interns typeName and allocates a fresh InstanceID for it.
func NewInstanceIDFor(typeName string) InstanceID {
	return NewInstanceID(TypeIDOf(typeName))
}

var types = struct {
	sync.RWMutex
	byName map[string]TypeID
	names  []string
}{
	byName: make(map[string]TypeID),
	names:  []string{""},
}

// TypeIDOf returns the TypeID for typeName, allocating the next one the first
// time a name is seen. The empty name maps to NoType.
func TypeIDOf(typeName string) TypeID {
	if typeName == "" {
		return NoType
	}

	types.RLock()
	id, ok := types.byName[typeName]
	types.RUnlock()
	if ok {
		return id
	}

	types.Lock()
	defer types.Unlock()
	if id, ok := types.byName[typeName]; ok {
		return id
	}
	id = TypeID(len(types.names))
	types.byName[typeName] = id
	types.names = append(types.names, typeName)
	return id
}

// TypeName returns the name interned for id.
func TypeName(id TypeID) (string, bool) {
	types.RLock()
	defer types.RUnlock()
	if id == NoType || int(id) >= len(types.names) {
		return "", false
	}
	return types.names[id], true
}
