// Package packer walks an entity graph breadth-first and turns every
// reachable entity into exactly one bundle.
package packer

import (
	"context"

	"github.com/graphpack/pkg/bundle"
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/utils"
)

// Stats summarizes one pack session.
type Stats struct {
	Bundles    int
	Fields     int
	References int
}

// Packer converts entity graphs to bundle sequences. A Packer holds no
// session state and may be shared between goroutines.
type Packer struct {
	logger utils.Logger
}

// Option configures a Packer.
type Option func(*Packer)

// WithLogger sets the packer logger.
func WithLogger(logger utils.Logger) Option {
	return func(p *Packer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Packer.
func New(opts ...Option) *Packer {
	p := &Packer{logger: utils.GetGlobalLogger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PackRoot packs root and everything reachable from it. Bundles are emitted
// in discovery order with root first. Any error aborts the session and no
// bundles are returned.
func (p *Packer) PackRoot(ctx context.Context, root Packable) ([]*bundle.Bundle, error) {
	bundles, _, err := p.PackRootWithStats(ctx, root)
	return bundles, err
}

// PackRootWithStats is PackRoot that also reports session statistics.
func (p *Packer) PackRootWithStats(ctx context.Context, root Packable) ([]*bundle.Bundle, *Stats, error) {
	if isNil(root) {
		return nil, nil, apperrors.New(apperrors.CodeContractViolation, "pack: nil root entity")
	}

	pc := newContext()
	pc.Ref(root)
	if pc.err != nil {
		return nil, nil, pc.err
	}

	stats := &Stats{}
	var out []*bundle.Bundle
	for {
		e, ok := pc.queue.Dequeue()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		b, err := p.describe(pc, e)
		if err != nil {
			p.logger.Debug("pack aborted at %s after %d bundles: %v", e.EntityType(), len(out), err)
			return nil, nil, err
		}
		stats.Fields += b.Len()
		stats.References += len(b.References())
		out = append(out, b)
	}

	stats.Bundles = len(out)
	p.logger.Debug("packed %d bundles (%d fields, %d references)", stats.Bundles, stats.Fields, stats.References)
	return out, stats, nil
}

func (p *Packer) describe(pc *Context, e Packable) (*bundle.Bundle, error) {
	id := pc.ids[e]

	b, err := e.DescribeSelf(pc)
	if err != nil {
		return nil, err
	}
	if pc.err != nil {
		return nil, pc.err
	}
	if b == nil {
		return nil, apperrors.Newf(apperrors.CodeContractViolation, "%s described itself as nil", e.EntityType())
	}
	if b.TypeName != e.EntityType() {
		return nil, apperrors.Newf(apperrors.CodeContractViolation,
			"%s described itself with type name %q", e.EntityType(), b.TypeName)
	}
	b.ID = id

	if err := b.Validate(); err != nil {
		return nil, err
	}
	for _, r := range b.References() {
		if !pc.Issued(r) {
			return nil, apperrors.Newf(apperrors.CodeContractViolation,
				"%s holds reference %s that was not obtained from the packing context", e.EntityType(), r)
		}
	}
	return b, nil
}

// PackRoot packs root with a Packer using the global logger.
func PackRoot(ctx context.Context, root Packable) ([]*bundle.Bundle, error) {
	return New().PackRoot(ctx, root)
}
