// Package registry maps entity type names to the factories that rebuild them,
// each over an inclusive range of bundle versions.
package registry

import (
	"sort"
	"sync"

	"github.com/graphpack/pkg/bundle"
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/utils"
)

// Factory reconstructs instances of one type from bundles whose version lies
// in [Oldest, Newest].
type Factory struct {
	TypeName string
	Oldest   int
	Newest   int
	Shell    ShellFunc
}

// Supports reports whether version lies in the factory's range.
func (f *Factory) Supports(version int) bool {
	return version >= f.Oldest && version <= f.Newest
}

// Registry is a concurrency-safe table of factories keyed by type name.
// It is typically filled once at startup and read by many sessions.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]*Factory
	logger    utils.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger utils.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		factories: make(map[string]*Factory),
		logger:    utils.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds the factory for typeName. Registering a name twice, an empty
// name, a nil shell function or a range outside 1 <= oldest <= newest is a
// contract violation.
func (r *Registry) Register(typeName string, oldest, newest int, shell ShellFunc) error {
	if typeName == "" {
		return apperrors.New(apperrors.CodeContractViolation, "register: empty type name")
	}
	if shell == nil {
		return apperrors.Newf(apperrors.CodeContractViolation, "register %q: nil shell function", typeName)
	}
	if oldest < 1 || newest < oldest {
		return apperrors.Newf(apperrors.CodeContractViolation,
			"register %q: invalid version range [%d,%d]", typeName, oldest, newest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[typeName]; exists {
		return apperrors.Newf(apperrors.CodeContractViolation, "register %q: type already registered", typeName)
	}
	r.factories[typeName] = &Factory{
		TypeName: typeName,
		Oldest:   oldest,
		Newest:   newest,
		Shell:    shell,
	}
	r.logger.Debug("registered %s versions [%d,%d]", typeName, oldest, newest)
	return nil
}

// MustRegister is Register for package initialization; it panics on error.
func (r *Registry) MustRegister(typeName string, oldest, newest int, shell ShellFunc) {
	if err := r.Register(typeName, oldest, newest, shell); err != nil {
		panic(err)
	}
}

// Lookup returns the factory for typeName or an unknown-type error.
func (r *Registry) Lookup(typeName string) (*Factory, error) {
	r.mu.RLock()
	f, ok := r.factories[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeUnknownType, "no factory registered for type %q", typeName)
	}
	return f, nil
}

// Has reports whether typeName is registered.
func (r *Registry) Has(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typeName]
	return ok
}

// TypeNames returns the registered type names in sorted order.
func (r *Registry) TypeNames() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// CheckVersion looks up the factory for b and verifies that b, and every
// bundle in its super chain, declares a version its factory supports.
func (r *Registry) CheckVersion(b *bundle.Bundle) (*Factory, error) {
	var top *Factory
	for cur := b; cur != nil; cur = cur.Super {
		f, err := r.Lookup(cur.TypeName)
		if err != nil {
			return nil, err
		}
		if !f.Supports(cur.Version) {
			return nil, apperrors.Newf(apperrors.CodeVersion,
				"type %q version %d outside supported range [%d,%d]",
				cur.TypeName, cur.Version, f.Oldest, f.Newest)
		}
		if top == nil {
			top = f
		}
	}
	return top, nil
}

// Default is the process-wide registry used by the package-level helpers.
var Default = New()

// Register adds a factory to the Default registry.
func Register(typeName string, oldest, newest int, shell ShellFunc) error {
	return Default.Register(typeName, oldest, newest, shell)
}

// Lookup finds a factory in the Default registry.
func Lookup(typeName string) (*Factory, error) {
	return Default.Lookup(typeName)
}
