package unpacker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphpack/pkg/bundle"
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/holder"
	"github.com/graphpack/pkg/identity"
	"github.com/graphpack/pkg/packer"
	"github.com/graphpack/pkg/registry"
)

const nodeType = "test.node"

// node completes once every neighbour has a shell, so cycles resolve.
type node struct {
	Name        string
	Next        []*node
	nextRefs    []identity.Reference
	completions int
}

func (n *node) EntityType() string { return nodeType }

func (n *node) DescribeSelf(ctx *packer.Context) (*bundle.Bundle, error) {
	b := bundle.New(nodeType, 2)
	if err := b.Put("name", holder.String(n.Name)); err != nil {
		return nil, err
	}
	h, err := holder.Refs(packer.RefsOf(ctx, n.Next), false)
	if err != nil {
		return nil, err
	}
	return b, b.Put("next", h)
}

func (n *node) CompleteSelf(uc registry.UnpackContext) (registry.Status, error) {
	if !registry.AllAvailable(uc, n.nextRefs...) {
		return registry.NotYetReady, nil
	}
	next := make([]*node, len(n.nextRefs))
	for i, r := range n.nextRefs {
		v, err := registry.ResolveAs[*node](uc, r)
		if err != nil {
			return 0, err
		}
		next[i] = v
	}
	n.Next = next
	n.completions++
	return registry.Done, nil
}

// needy completes only once every neighbour is finished.
type needy struct {
	Name     string
	Other    *needy
	other    *needy
	otherRef identity.Reference
}

func (n *needy) EntityType() string { return "test.needy" }

func (n *needy) DescribeSelf(ctx *packer.Context) (*bundle.Bundle, error) {
	b := bundle.New("test.needy", 1)
	if err := b.Put("name", holder.String(n.Name)); err != nil {
		return nil, err
	}
	h, err := ctx.RefHolder(n.other, false)
	if err != nil {
		return nil, err
	}
	return b, b.Put("other", h)
}

func (n *needy) CompleteSelf(uc registry.UnpackContext) (registry.Status, error) {
	if !registry.AllFinished(uc, n.otherRef) {
		return registry.NotYetReady, nil
	}
	other, err := registry.ResolveAs[*needy](uc, n.otherRef)
	if err != nil {
		return 0, err
	}
	n.Other = other
	return registry.Done, nil
}

type leaf struct {
	Value int64
}

func (l *leaf) EntityType() string { return "test.leaf" }

func (l *leaf) DescribeSelf(ctx *packer.Context) (*bundle.Bundle, error) {
	b := bundle.New("test.leaf", 1)
	return b, b.Put("value", holder.Long(l.Value))
}

type fixture struct {
	reg    *registry.Registry
	shells int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{reg: registry.New()}

	require.NoError(t, f.reg.Register(nodeType, 1, 3, func(b *bundle.Bundle, uc registry.UnpackContext) (any, error) {
		f.shells++
		name, err := b.String("name")
		if err != nil {
			return nil, err
		}
		h, _ := b.Get("next")
		refs, err := h.AsRefs()
		if err != nil {
			return nil, err
		}
		return &node{Name: name, nextRefs: refs}, nil
	}))
	require.NoError(t, f.reg.Register("test.needy", 1, 1, func(b *bundle.Bundle, uc registry.UnpackContext) (any, error) {
		f.shells++
		name, err := b.String("name")
		if err != nil {
			return nil, err
		}
		h, _ := b.Get("other")
		ref, err := h.AsRef()
		if err != nil {
			return nil, err
		}
		return &needy{Name: name, otherRef: ref}, nil
	}))
	require.NoError(t, f.reg.Register("test.leaf", 1, 1, func(b *bundle.Bundle, uc registry.UnpackContext) (any, error) {
		f.shells++
		v, err := b.Long("value")
		if err != nil {
			return nil, err
		}
		return &leaf{Value: v}, nil
	}))
	return f
}

func pack(t *testing.T, root packer.Packable) []*bundle.Bundle {
	t.Helper()
	bundles, err := packer.New().PackRoot(context.Background(), root)
	require.NoError(t, err)
	return bundles
}

func TestUnpack_RoundTripPreservesTopology(t *testing.T) {
	f := newFixture(t)
	shared := &node{Name: "shared"}
	a := &node{Name: "a", Next: []*node{shared}}
	b := &node{Name: "b", Next: []*node{shared}}
	root := &node{Name: "root", Next: []*node{a, b}}

	got, err := UnpackAs[*node](context.Background(), New(f.reg), pack(t, root))
	require.NoError(t, err)

	assert.Equal(t, "root", got.Name)
	require.Len(t, got.Next, 2)
	assert.Equal(t, "a", got.Next[0].Name)
	assert.Equal(t, "b", got.Next[1].Name)
	require.Len(t, got.Next[0].Next, 1)
	assert.Same(t, got.Next[0].Next[0], got.Next[1].Next[0])
	assert.Equal(t, "shared", got.Next[0].Next[0].Name)
	assert.Empty(t, got.Next[0].Next[0].Next)
	assert.NotSame(t, root, got)
}

func TestUnpack_CycleLaw(t *testing.T) {
	f := newFixture(t)
	a := &node{Name: "a"}
	b := &node{Name: "b", Next: []*node{a}}
	a.Next = []*node{b}

	res, err := New(f.reg).UnpackAll(context.Background(), pack(t, a))
	require.NoError(t, err)

	gotA := res.Root.(*node)
	require.Len(t, gotA.Next, 1)
	gotB := gotA.Next[0]
	require.Len(t, gotB.Next, 1)

	assert.Equal(t, "b", gotB.Name)
	assert.Same(t, gotA, gotB.Next[0])
	assert.Equal(t, 1, gotA.completions)
	assert.Equal(t, 1, gotB.completions)
	assert.Equal(t, 1, res.Stats.Sweeps, "shell-level cycles finish in one sweep")
	assert.Equal(t, 2, res.Stats.Entities)
}

func TestUnpack_SelfReference(t *testing.T) {
	f := newFixture(t)
	a := &node{Name: "self"}
	a.Next = []*node{a}

	got, err := UnpackAs[*node](context.Background(), New(f.reg), pack(t, a))
	require.NoError(t, err)
	assert.Same(t, got, got.Next[0])
}

func TestUnpack_FinishedChainNeedsOneSweepPerLink(t *testing.T) {
	f := newFixture(t)
	c2 := &needy{Name: "c2"}
	c1 := &needy{Name: "c1", other: c2}
	c0 := &needy{Name: "c0", other: c1}

	res, err := New(f.reg).UnpackAll(context.Background(), pack(t, c0))
	require.NoError(t, err)

	got := res.Root.(*needy)
	assert.Equal(t, "c1", got.Other.Name)
	assert.Equal(t, "c2", got.Other.Other.Name)
	assert.Nil(t, got.Other.Other.Other)
	assert.Equal(t, 3, res.Stats.Sweeps)
	assert.Equal(t, 3, res.Stats.Retries)
	assert.LessOrEqual(t, res.Stats.Sweeps, res.Stats.Completers)
}

func TestUnpack_StuckGraphDetected(t *testing.T) {
	f := newFixture(t)
	a := &needy{Name: "a"}
	b := &needy{Name: "b", other: a}
	a.other = b
	bundles := pack(t, a)

	_, err := New(f.reg).Unpack(context.Background(), bundles)
	require.Error(t, err)
	assert.True(t, apperrors.IsStuckGraphError(err))

	var stuck *StuckGraphError
	require.True(t, errors.As(err, &stuck))
	assert.Equal(t, []identity.InstanceID{bundles[0].ID, bundles[1].ID}, stuck.Unfinished)
	assert.Equal(t, []string{"test.needy", "test.needy"}, stuck.Types)
	assert.LessOrEqual(t, stuck.Sweeps, 2)
	assert.False(t, stuck.CapReached)
	assert.Contains(t, err.Error(), bundles[0].ID.String())
}

func TestUnpack_MaxSweepsCap(t *testing.T) {
	f := newFixture(t)
	c2 := &needy{Name: "c2"}
	c1 := &needy{Name: "c1", other: c2}
	c0 := &needy{Name: "c0", other: c1}

	_, err := New(f.reg, WithMaxSweeps(2)).Unpack(context.Background(), pack(t, c0))
	require.Error(t, err)

	var stuck *StuckGraphError
	require.True(t, errors.As(err, &stuck))
	assert.True(t, stuck.CapReached)
	assert.Equal(t, 2, stuck.Sweeps)
	assert.Len(t, stuck.Unfinished, 1)
}

func TestUnpack_VersionGatingBuildsNothing(t *testing.T) {
	f := newFixture(t)
	bundles := pack(t, &node{Name: "root", Next: []*node{{Name: "child"}}})
	bundles[1].Version = 5

	_, err := New(f.reg).Unpack(context.Background(), bundles)
	require.Error(t, err)
	assert.True(t, apperrors.IsVersionError(err))
	assert.Contains(t, err.Error(), nodeType)
	assert.Contains(t, err.Error(), "version 5")
	assert.Zero(t, f.shells)
}

func TestUnpack_StructuralFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]*bundle.Bundle) []*bundle.Bundle
		checkFn func(error) bool
	}{
		{
			name:    "empty stream",
			mutate:  func([]*bundle.Bundle) []*bundle.Bundle { return nil },
			checkFn: apperrors.IsStructuralError,
		},
		{
			name:    "dangling reference",
			mutate:  func(bs []*bundle.Bundle) []*bundle.Bundle { return bs[:1] },
			checkFn: apperrors.IsStructuralError,
		},
		{
			name:    "duplicate instance id",
			mutate:  func(bs []*bundle.Bundle) []*bundle.Bundle { return append(bs, bs[1]) },
			checkFn: apperrors.IsStructuralError,
		},
		{
			name: "missing instance id",
			mutate: func(bs []*bundle.Bundle) []*bundle.Bundle {
				bs[1].ID = identity.InstanceID{}
				return bs
			},
			checkFn: apperrors.IsStructuralError,
		},
		{
			name: "nil bundle",
			mutate: func(bs []*bundle.Bundle) []*bundle.Bundle {
				return append(bs, nil)
			},
			checkFn: apperrors.IsStructuralError,
		},
		{
			name: "unknown type",
			mutate: func(bs []*bundle.Bundle) []*bundle.Bundle {
				bs[1].TypeName = "test.gone"
				return bs
			},
			checkFn: apperrors.IsUnknownTypeError,
		},
		{
			name: "missing field",
			mutate: func(bs []*bundle.Bundle) []*bundle.Bundle {
				bs[1] = &bundle.Bundle{TypeName: nodeType, Version: 1, ID: bs[1].ID}
				return bs
			},
			checkFn: apperrors.IsStructuralError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			bundles := pack(t, &node{Name: "root", Next: []*node{{Name: "child"}}})

			_, err := New(f.reg).Unpack(context.Background(), tt.mutate(bundles))
			require.Error(t, err)
			assert.True(t, tt.checkFn(err), err.Error())
		})
	}
}

func TestUnpack_NonCompleterFinishesImmediately(t *testing.T) {
	f := newFixture(t)

	res, err := New(f.reg).UnpackAll(context.Background(), pack(t, &leaf{Value: 42}))
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.Root.(*leaf).Value)
	assert.Zero(t, res.Stats.Completers)
	assert.Zero(t, res.Stats.Sweeps)
}

type scripted struct {
	complete func(uc registry.UnpackContext) (registry.Status, error)
}

func (s *scripted) CompleteSelf(uc registry.UnpackContext) (registry.Status, error) {
	return s.complete(uc)
}

func leafBundles(t *testing.T) []*bundle.Bundle {
	t.Helper()
	return pack(t, &leaf{Value: 1})
}

func TestUnpack_ContractAndApplicationErrors(t *testing.T) {
	appErr := errors.New("shell refused")

	tests := []struct {
		name  string
		shell registry.ShellFunc
		check func(t *testing.T, err error)
	}{
		{
			name: "nil shell value",
			shell: func(b *bundle.Bundle, uc registry.UnpackContext) (any, error) {
				return nil, nil
			},
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsContractViolation(err)) },
		},
		{
			name: "shell error passes through",
			shell: func(b *bundle.Bundle, uc registry.UnpackContext) (any, error) {
				return nil, appErr
			},
			check: func(t *testing.T, err error) { assert.Same(t, appErr, err) },
		},
		{
			name: "resolve during shell",
			shell: func(b *bundle.Bundle, uc registry.UnpackContext) (any, error) {
				_, err := uc.Resolve(identity.Ref(b.ID))
				return struct{}{}, err
			},
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsContractViolation(err)) },
		},
		{
			name: "completion error passes through",
			shell: func(b *bundle.Bundle, uc registry.UnpackContext) (any, error) {
				return &scripted{complete: func(registry.UnpackContext) (registry.Status, error) {
					return 0, appErr
				}}, nil
			},
			check: func(t *testing.T, err error) { assert.Same(t, appErr, err) },
		},
		{
			name: "invalid status",
			shell: func(b *bundle.Bundle, uc registry.UnpackContext) (any, error) {
				return &scripted{complete: func(registry.UnpackContext) (registry.Status, error) {
					return registry.Status(0), nil
				}}, nil
			},
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsContractViolation(err)) },
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New()
			require.NoError(t, reg.Register("test.leaf", 1, 1, tt.shell))

			_, err := New(reg).Unpack(context.Background(), leafBundles(t))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestSession_ContextQueries(t *testing.T) {
	bundles := pack(t, &node{Name: "root", Next: []*node{{Name: "child"}}})
	rootRef := identity.Ref(bundles[0].ID)

	var observed []bool
	reg := registry.New()
	require.NoError(t, reg.Register(nodeType, 1, 3, func(b *bundle.Bundle, uc registry.UnpackContext) (any, error) {
		observed = append(observed, uc.IsAvailable(rootRef), uc.IsFinished(rootRef))
		local, ok := uc.LocalID(identity.Ref(b.ID))
		require.True(t, ok)
		assert.NotEqual(t, b.ID, local)
		assert.Equal(t, identity.TypeIDOf(nodeType), local.Type)
		return &leaf{}, nil
	}))

	_, err := New(reg).Unpack(context.Background(), bundles)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, true, true}, observed)
}

func TestUnpack_CanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(f.reg).Unpack(ctx, pack(t, &node{Name: "root"}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unseen", Unseen.String())
	assert.Equal(t, "parsed", Parsed.String())
	assert.Equal(t, "shell", Shell.String())
	assert.Equal(t, "finished", Finished.String())
	assert.Equal(t, "state(9)", State(9).String())
}
