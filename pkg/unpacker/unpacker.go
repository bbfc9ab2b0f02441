// Package unpacker rebuilds entity graphs from bundle sequences.
//
// Unpacking runs in three phases over an arena of slots, one per bundle:
// every bundle is validated and parsed first, then every shell is built in
// stream order, then completion sweeps run until every entity is finished
// or a sweep makes no progress. A failure in any phase discards the whole
// session.
package unpacker

import (
	"context"
	"sort"

	"github.com/graphpack/pkg/bundle"
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/identity"
	"github.com/graphpack/pkg/registry"
	"github.com/graphpack/pkg/utils"
)

// Stats summarizes one unpack session.
type Stats struct {
	Entities   int
	Completers int
	Sweeps     int
	Retries    int
}

// Result is the outcome of a successful session.
type Result struct {
	// Root is the instance rebuilt from the first bundle.
	Root any
	// Entities holds every instance in stream order.
	Entities []any
	Stats    Stats
}

// Unpacker rebuilds graphs using the factories of one registry. It holds no
// session state and may be shared between goroutines.
type Unpacker struct {
	registry  *registry.Registry
	logger    utils.Logger
	maxSweeps int
}

// Option configures an Unpacker.
type Option func(*Unpacker)

// WithLogger sets the unpacker logger.
func WithLogger(logger utils.Logger) Option {
	return func(u *Unpacker) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithMaxSweeps caps the number of completion sweeps. Values below 1 keep
// the default, which is the number of entities awaiting completion.
func WithMaxSweeps(n int) Option {
	return func(u *Unpacker) {
		u.maxSweeps = n
	}
}

// New creates an Unpacker over reg. A nil reg selects registry.Default.
func New(reg *registry.Registry, opts ...Option) *Unpacker {
	if reg == nil {
		reg = registry.Default
	}
	u := &Unpacker{
		registry: reg,
		logger:   utils.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Unpack rebuilds the graph and returns the root instance.
func (u *Unpacker) Unpack(ctx context.Context, bundles []*bundle.Bundle) (any, error) {
	res, err := u.UnpackAll(ctx, bundles)
	if err != nil {
		return nil, err
	}
	return res.Root, nil
}

// UnpackAll rebuilds the graph and returns every instance with session
// statistics.
func (u *Unpacker) UnpackAll(ctx context.Context, bundles []*bundle.Bundle) (*Result, error) {
	s, err := u.parse(bundles)
	if err != nil {
		return nil, err
	}
	if err := u.buildShells(s); err != nil {
		return nil, err
	}

	stats := Stats{Entities: len(s.slots), Completers: s.pending.Count()}
	if err := u.sweep(ctx, s, &stats); err != nil {
		return nil, err
	}

	entities := make([]any, len(s.slots))
	for i, sl := range s.slots {
		entities[i] = sl.value
	}
	u.logger.Debug("unpacked %d entities (%d completers, %d sweeps, %d retries)",
		stats.Entities, stats.Completers, stats.Sweeps, stats.Retries)
	return &Result{Root: entities[0], Entities: entities, Stats: stats}, nil
}

// parse moves every bundle to Parsed. Nothing is constructed until the whole
// stream has been checked.
func (u *Unpacker) parse(bundles []*bundle.Bundle) (*session, error) {
	if len(bundles) == 0 {
		return nil, apperrors.New(apperrors.CodeStructural, "empty bundle sequence")
	}

	s := newSession(len(bundles))
	for i, b := range bundles {
		if b == nil {
			return nil, apperrors.Newf(apperrors.CodeStructural, "bundle %d is nil", i)
		}
		if b.ID.IsZero() {
			return nil, apperrors.Newf(apperrors.CodeStructural, "bundle %d (%s) has no instance id", i, b.TypeName)
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.index[b.ID]; dup {
			return nil, apperrors.Newf(apperrors.CodeStructural, "instance id %s appears twice", b.ID)
		}
		f, err := u.registry.CheckVersion(b)
		if err != nil {
			return nil, err
		}

		s.index[b.ID] = len(s.slots)
		s.slots = append(s.slots, &slot{
			wire:    b.ID,
			local:   identity.NewInstanceIDFor(b.TypeName),
			bundle:  b,
			factory: f,
			state:   Parsed,
		})
	}

	for _, sl := range s.slots {
		for _, r := range sl.bundle.References() {
			if _, ok := s.index[r.ID]; !ok {
				return nil, apperrors.Newf(apperrors.CodeStructural,
					"%s %s holds dangling reference %s", sl.bundle.TypeName, sl.wire, r)
			}
		}
	}
	return s, nil
}

func (u *Unpacker) buildShells(s *session) error {
	s.building = true
	defer func() { s.building = false }()

	for i, sl := range s.slots {
		v, err := sl.factory.Shell(sl.bundle, s)
		if err != nil {
			return err
		}
		if v == nil {
			return apperrors.Newf(apperrors.CodeContractViolation,
				"factory for %s returned a nil shell", sl.bundle.TypeName)
		}
		sl.value = v
		if c, ok := v.(registry.Completer); ok {
			sl.completer = c
			sl.state = Shell
			s.pending.Set(i)
		} else {
			sl.state = Finished
		}
	}
	return nil
}

func (u *Unpacker) sweep(ctx context.Context, s *session, stats *Stats) error {
	limit := s.pending.Count()
	if u.maxSweeps > 0 && u.maxSweeps < limit {
		limit = u.maxSweeps
	}

	for s.pending.Count() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if stats.Sweeps >= limit {
			return stuck(s, stats.Sweeps, true)
		}
		stats.Sweeps++

		progress := false
		for _, i := range s.pending.ToSlice() {
			sl := s.slots[i]
			status, err := sl.completer.CompleteSelf(s)
			if err != nil {
				return err
			}
			switch status {
			case registry.Done:
				sl.state = Finished
				s.pending.Clear(i)
				progress = true
			case registry.NotYetReady:
				stats.Retries++
			default:
				return apperrors.Newf(apperrors.CodeContractViolation,
					"%s completion returned invalid %s", sl.bundle.TypeName, status)
			}
		}
		if !progress {
			return stuck(s, stats.Sweeps, false)
		}
	}
	return nil
}

func stuck(s *session, sweeps int, capReached bool) error {
	indices := s.pending.ToSlice()
	sort.Slice(indices, func(a, b int) bool {
		return s.slots[indices[a]].wire.Less(s.slots[indices[b]].wire)
	})

	detail := &StuckGraphError{
		Unfinished: make([]identity.InstanceID, len(indices)),
		Types:      make([]string, len(indices)),
		Sweeps:     sweeps,
		CapReached: capReached,
	}
	for k, i := range indices {
		detail.Unfinished[k] = s.slots[i].wire
		detail.Types[k] = s.slots[i].bundle.TypeName
	}
	return apperrors.Wrap(apperrors.CodeStuckGraph, "entity graph cannot be completed", detail)
}

// Unpack rebuilds bundles with registry.Default.
func Unpack(ctx context.Context, bundles []*bundle.Bundle) (any, error) {
	return New(nil).Unpack(ctx, bundles)
}

// UnpackAs rebuilds the graph and asserts the root's type.
func UnpackAs[T any](ctx context.Context, u *Unpacker, bundles []*bundle.Bundle) (T, error) {
	var zero T
	root, err := u.Unpack(ctx, bundles)
	if err != nil {
		return zero, err
	}
	t, ok := root.(T)
	if !ok {
		return zero, apperrors.Newf(apperrors.CodeStructural, "root is %T, expected %T", root, zero)
	}
	return t, nil
}
