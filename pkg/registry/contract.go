package registry

import (
	"fmt"

	"github.com/graphpack/pkg/bundle"
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/identity"
)

// Status is the outcome of a completion attempt.
type Status int

const (
	// Done means the entity resolved every reference it retained and is finished.
	Done Status = iota + 1
	// NotYetReady means a required reference is not finished yet. The unpacker
	// retries on a later sweep without rebuilding the shell.
	NotYetReady
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Done:
		return "done"
	case NotYetReady:
		return "not-yet-ready"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// UnpackContext is the view of an unpacking session offered to shell and
// completion functions.
type UnpackContext interface {
	// IsAvailable reports whether the referenced entity has at least a shell.
	IsAvailable(r identity.Reference) bool
	// IsFinished reports whether the referenced entity completed.
	IsFinished(r identity.Reference) bool
	// Resolve returns the live instance for r. It fails during shell
	// construction and for entities that have no shell yet. The nil
	// reference resolves to nil.
	Resolve(r identity.Reference) (any, error)
	// LocalID returns the id allocated in this process for the entity the
	// bundle stream called r.
	LocalID(r identity.Reference) (identity.InstanceID, bool)
}

// Completer is implemented by shells that retain references. Entities that
// do not implement it are finished as soon as their shell exists.
//
// CompleteSelf must re-check every retained reference before resolving it,
// must be safe to call again after returning NotYetReady, and must not
// change visible state when it returns NotYetReady.
type Completer interface {
	CompleteSelf(uc UnpackContext) (Status, error)
}

// ShellFunc builds a partially usable instance from b. It may read
// immediately available values and keep raw references, but must not
// resolve them.
type ShellFunc func(b *bundle.Bundle, uc UnpackContext) (any, error)

// ResolveAs resolves r and asserts the instance type. The nil reference
// yields the zero T.
func ResolveAs[T any](uc UnpackContext, r identity.Reference) (T, error) {
	var zero T
	if r.IsNil() {
		return zero, nil
	}
	v, err := uc.Resolve(r)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, apperrors.Newf(apperrors.CodeStructural, "reference %s resolves to %T, expected %T", r, v, zero)
	}
	return t, nil
}

// AllFinished reports whether every non-nil reference in refs is finished.
func AllFinished(uc UnpackContext, refs ...identity.Reference) bool {
	for _, r := range refs {
		if !r.IsNil() && !uc.IsFinished(r) {
			return false
		}
	}
	return true
}

// AllAvailable reports whether every non-nil reference in refs has a shell.
func AllAvailable(uc UnpackContext, refs ...identity.Reference) bool {
	for _, r := range refs {
		if !r.IsNil() && !uc.IsAvailable(r) {
			return false
		}
	}
	return true
}
