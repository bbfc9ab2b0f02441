package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/holder"
	"github.com/graphpack/pkg/identity"
)

func TestBundle_PutPreservesOrder(t *testing.T) {
	b := New("test.Point", 1)
	require.NoError(t, b.Put("y", holder.Int(2)))
	require.NoError(t, b.Put("x", holder.Int(1)))
	require.NoError(t, b.Put("label", holder.String("origin")))

	names := make([]string, 0, b.Len())
	for _, f := range b.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"y", "x", "label"}, names)
	assert.True(t, b.Has("x"))
	assert.False(t, b.Has("z"))
}

func TestBundle_DuplicateFieldIsStructural(t *testing.T) {
	b := New("test.Point", 1)
	require.NoError(t, b.Put("x", holder.Int(1)))

	err := b.Put("x", holder.Int(2))
	require.Error(t, err)
	assert.True(t, apperrors.IsStructuralError(err))

	v, err := b.Int("x")
	require.NoError(t, err)
	assert.Equal(t, int32(1), v, "first value wins")

	assert.True(t, apperrors.IsStructuralError(b.Put("", holder.Int(0))))
}

func TestBundle_PutAll(t *testing.T) {
	b := New("test.Point", 1)
	err := b.PutAll(
		Field{Name: "x", Holder: holder.Int(1)},
		Field{Name: "x", Holder: holder.Int(1)},
	)
	assert.True(t, apperrors.IsStructuralError(err))
	assert.Equal(t, 1, b.Len())
}

func TestBundle_TypedGetters(t *testing.T) {
	ref := identity.Ref(identity.InstanceID{Type: 1, Serial: 99})
	refHolder, err := holder.Ref(ref, true)
	require.NoError(t, err)
	refsHolder, err := holder.Refs([]identity.Reference{ref}, false)
	require.NoError(t, err)
	bytesHolder, err := holder.Array([]byte{1, 2}, false)
	require.NoError(t, err)

	b := New("test.All", 2)
	require.NoError(t, b.PutAll(
		Field{"flag", holder.Bool(true)},
		Field{"count", holder.Int(3)},
		Field{"total", holder.Long(30)},
		Field{"ratio", holder.Double(0.5)},
		Field{"name", holder.String("n")},
		Field{"raw", bytesHolder},
		Field{"next", refHolder},
		Field{"all", refsHolder},
	))

	flag, err := b.Bool("flag")
	require.NoError(t, err)
	assert.True(t, flag)

	count, err := b.Int("count")
	require.NoError(t, err)
	assert.Equal(t, int32(3), count)

	total, err := b.Long("total")
	require.NoError(t, err)
	assert.Equal(t, int64(30), total)

	ratio, err := b.Double("ratio")
	require.NoError(t, err)
	assert.Equal(t, 0.5, ratio)

	name, err := b.String("name")
	require.NoError(t, err)
	assert.Equal(t, "n", name)

	raw, err := b.Bytes("raw")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, raw)

	next, err := b.Ref("next")
	require.NoError(t, err)
	assert.Equal(t, ref, next)

	all, err := b.Refs("all")
	require.NoError(t, err)
	assert.Equal(t, []identity.Reference{ref}, all)

	_, err = b.Int("missing")
	assert.True(t, apperrors.IsStructuralError(err))

	_, err = b.Long("count")
	assert.True(t, apperrors.IsStructuralError(err), "kind mismatch")
}

func TestBundle_ReferencesIncludeSuperChain(t *testing.T) {
	a := identity.Ref(identity.InstanceID{Type: 1, Serial: 1})
	c := identity.Ref(identity.InstanceID{Type: 1, Serial: 3})

	super := New("test.Base", 1)
	hc, _ := holder.Ref(c, true)
	require.NoError(t, super.Put("owner", hc))

	b := New("test.Derived", 1).WithSuper(super)
	ha, _ := holder.Ref(a, true)
	hn, _ := holder.Ref(identity.NilReference, false)
	require.NoError(t, b.Put("left", ha))
	require.NoError(t, b.Put("right", hn))

	assert.Equal(t, []identity.Reference{a, c}, b.References())
}

func TestBundle_Validate(t *testing.T) {
	valid := New("test.Ok", 1)
	require.NoError(t, valid.Put("x", holder.Int(1)))
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		bundle *Bundle
	}{
		{"no type name", New("", 1)},
		{"version zero", New("test.V", 0)},
		{"bad super", New("test.D", 1).WithSuper(New("test.B", 0))},
		{"mandatory null", func() *Bundle {
			b := New("test.M", 1)
			_ = b.Put("r", holder.Restore(holder.KindReference, nil, true, true))
			return b
		}()},
		{"null int", func() *Bundle {
			b := New("test.N", 1)
			_ = b.Put("age", holder.Restore(holder.KindInt, nil, false, true))
			return b
		}()},
		{"null double in super", New("test.D", 1).WithSuper(func() *Bundle {
			b := New("test.B", 1)
			_ = b.Put("salary", holder.Restore(holder.KindDouble, nil, false, true))
			return b
		}())},
		{"unknown kind", func() *Bundle {
			b := New("test.K", 1)
			_ = b.Put("k", holder.Restore(holder.Kind(250), 1, false, false))
			return b
		}()},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bundle.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsStructuralError(err))
		})
	}
}

func TestBundle_RequireMandatoryNull(t *testing.T) {
	b := New("test.M", 1)
	require.NoError(t, b.Put("r", holder.Restore(holder.KindReference, nil, true, true)))

	_, err := b.Require("r")
	assert.True(t, apperrors.IsStructuralError(err))
}

func TestBundle_NullScalarGettersReturnError(t *testing.T) {
	b := New("test.N", 1)
	require.NoError(t, b.Put("age", holder.Restore(holder.KindInt, nil, false, true)))
	require.NoError(t, b.Put("rate", holder.Restore(holder.KindDouble, nil, false, true)))

	assert.NotPanics(t, func() {
		_, err := b.Int("age")
		assert.True(t, apperrors.IsStructuralError(err))
		_, err = b.Double("rate")
		assert.True(t, apperrors.IsStructuralError(err))
	})
}
