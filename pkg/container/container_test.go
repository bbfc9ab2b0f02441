package container

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphpack/pkg/bundle"
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/holder"
	"github.com/graphpack/pkg/identity"
	"github.com/graphpack/pkg/packer"
	"github.com/graphpack/pkg/registry"
	"github.com/graphpack/pkg/unpacker"
)

type item struct {
	Name string
}

func (i *item) EntityType() string { return "test.item" }

func (i *item) DescribeSelf(pc *packer.Context) (*bundle.Bundle, error) {
	b := bundle.New("test.item", 1)
	return b, b.Put("name", holder.String(i.Name))
}

func registerItem(t *testing.T, reg *registry.Registry) {
	t.Helper()
	require.NoError(t, reg.Register("test.item", 1, 1, func(b *bundle.Bundle, _ registry.UnpackContext) (any, error) {
		name, err := b.String("name")
		if err != nil {
			return nil, err
		}
		return &item{Name: name}, nil
	}))
}

func roundTrip[T any](t *testing.T, reg *registry.Registry, root packer.Packable) T {
	t.Helper()
	bundles, err := packer.New().PackRoot(context.Background(), root)
	require.NoError(t, err)
	got, err := unpacker.UnpackAs[T](context.Background(), unpacker.New(reg), bundles)
	require.NoError(t, err)
	return got
}

func TestList_StringRoundTrip(t *testing.T) {
	reg := registry.New()
	require.NoError(t, RegisterList(reg, Strings()))

	got := roundTrip[*List[string]](t, reg, NewList(Strings(), "x", "y", "z"))
	assert.Equal(t, []string{"x", "y", "z"}, got.Items)
	assert.Equal(t, 3, got.Len())
}

func TestList_OrderBeyondSingleDigitIndices(t *testing.T) {
	reg := registry.New()
	require.NoError(t, RegisterList(reg, Int64s()))

	want := make([]int64, 25)
	for i := range want {
		want[i] = int64(100 - i)
	}

	got := roundTrip[*List[int64]](t, reg, NewList(Int64s(), want...))
	assert.Equal(t, want, got.Items)
}

func TestList_Empty(t *testing.T) {
	reg := registry.New()
	require.NoError(t, RegisterList(reg, Strings()))

	got := roundTrip[*List[string]](t, reg, NewList[string](Strings()))
	assert.Empty(t, got.Items)
}

func TestList_ScalarCodecs(t *testing.T) {
	reg := registry.New()
	require.NoError(t, RegisterList(reg, Float64s()))
	require.NoError(t, RegisterList(reg, Bools()))
	require.NoError(t, RegisterList(reg, Bytes()))

	floats := roundTrip[*List[float64]](t, reg, NewList(Float64s(), 1.5, -2.25))
	assert.Equal(t, []float64{1.5, -2.25}, floats.Items)

	bools := roundTrip[*List[bool]](t, reg, NewList(Bools(), true, false, true))
	assert.Equal(t, []bool{true, false, true}, bools.Items)

	blobs := roundTrip[*List[[]byte]](t, reg, NewList(Bytes(), []byte("ab"), nil))
	assert.Equal(t, [][]byte{[]byte("ab"), nil}, blobs.Items)
}

func TestList_EntityElementsShareIdentity(t *testing.T) {
	reg := registry.New()
	registerItem(t, reg)
	codec := Entities[*item]("test.item")
	require.NoError(t, RegisterList(reg, codec))

	a := &item{Name: "a"}
	b := &item{Name: "b"}
	got := roundTrip[*List[*item]](t, reg, NewList(codec, a, b, a, nil))

	require.Len(t, got.Items, 4)
	assert.Equal(t, "a", got.Items[0].Name)
	assert.Equal(t, "b", got.Items[1].Name)
	assert.Same(t, got.Items[0], got.Items[2])
	assert.Nil(t, got.Items[3])
	assert.Equal(t, "container.List[entity:test.item]", got.EntityType())
}

func TestList_WaitsForUnfinishedElements(t *testing.T) {
	reg := registry.New()
	registerItem(t, reg)
	codec := Entities[*item]("test.item")
	require.NoError(t, RegisterList(reg, codec))

	bundles, err := packer.New().PackRoot(context.Background(), NewList(codec, &item{Name: "a"}))
	require.NoError(t, err)
	require.Len(t, bundles, 2)

	shell, err := reg.Lookup(bundles[0].TypeName)
	require.NoError(t, err)
	v, err := shell.Shell(bundles[0], nil)
	require.NoError(t, err)
	l := v.(*List[*item])

	status, err := l.CompleteSelf(notFinished{})
	require.NoError(t, err)
	assert.Equal(t, registry.NotYetReady, status)
	assert.Nil(t, l.Items, "no partial assignment")
}

type notFinished struct{ registry.UnpackContext }

func (notFinished) IsFinished(r identity.Reference) bool { return false }

func TestMap_RoundTripKeepsInsertionOrder(t *testing.T) {
	reg := registry.New()
	require.NoError(t, RegisterMap(reg, Strings(), Int64s()))

	m := NewMap(Strings(), Int64s())
	for i := 0; i < 12; i++ {
		m.Set(fmt.Sprintf("k%02d", 11-i), int64(i))
	}
	m.Set("k05", 500)

	got := roundTrip[*Map[string, int64]](t, reg, m)
	assert.Equal(t, m.Keys(), got.Keys())
	assert.Equal(t, 12, got.Len())

	v, ok := got.Get("k05")
	require.True(t, ok)
	assert.Equal(t, int64(500), v)

	var visited int
	got.Range(func(k string, v int64) bool {
		visited++
		return visited < 3
	})
	assert.Equal(t, 3, visited)
}

func TestMap_EntityValues(t *testing.T) {
	reg := registry.New()
	registerItem(t, reg)
	values := Entities[*item]("test.item")
	require.NoError(t, RegisterMap(reg, Strings(), values))

	shared := &item{Name: "shared"}
	m := NewMap(Strings(), values)
	m.Set("first", shared)
	m.Set("second", shared)
	m.Set("none", nil)

	got := roundTrip[*Map[string, *item]](t, reg, m)
	first, _ := got.Get("first")
	second, _ := got.Get("second")
	none, ok := got.Get("none")

	assert.Equal(t, "shared", first.Name)
	assert.Same(t, first, second)
	assert.True(t, ok)
	assert.Nil(t, none)
}

func TestMap_RegisterTwiceFails(t *testing.T) {
	reg := registry.New()
	require.NoError(t, RegisterMap(reg, Strings(), Strings()))
	assert.True(t, apperrors.IsContractViolation(RegisterMap(reg, Strings(), Strings())))
}

func TestMap_CorruptPairIndices(t *testing.T) {
	reg := registry.New()
	require.NoError(t, RegisterMap(reg, Strings(), Int64s()))

	m := NewMap(Strings(), Int64s())
	m.Set("a", 1)
	m.Set("b", 2)
	bundles, err := packer.New().PackRoot(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, bundles, 3)

	// Rewrite the second pair so both claim index 0.
	corrupt := bundle.New(bundles[2].TypeName, 1)
	corrupt.ID = bundles[2].ID
	require.NoError(t, corrupt.PutAll(
		bundle.Field{Name: "index", Holder: holder.Int(0)},
		bundle.Field{Name: "key", Holder: holder.String("b")},
		bundle.Field{Name: "value", Holder: holder.Long(2)},
	))
	bundles[2] = corrupt

	_, err = unpacker.New(reg).Unpack(context.Background(), bundles)
	require.Error(t, err)
	assert.True(t, apperrors.IsStructuralError(err))
}

func TestReadElements_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		fields []bundle.Field
	}{
		{"missing size", nil},
		{"negative size", []bundle.Field{{Name: "size", Holder: holder.Int(-1)}}},
		{"too few elements", []bundle.Field{{Name: "size", Holder: holder.Int(2)}, {Name: "_0", Holder: holder.String("a")}}},
		{"gap in names", []bundle.Field{
			{Name: "size", Holder: holder.Int(2)},
			{Name: "_0", Holder: holder.String("a")},
			{Name: "_2", Holder: holder.String("c")},
		}},
		{"extra field", []bundle.Field{
			{Name: "size", Holder: holder.Int(1)},
			{Name: "_0", Holder: holder.String("a")},
			{Name: "extra", Holder: holder.String("b")},
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			b := bundle.New("container.List[string]", 1)
			require.NoError(t, b.PutAll(tt.fields...))

			_, err := readElements(b)
			require.Error(t, err)
			assert.True(t, apperrors.IsStructuralError(err))
		})
	}
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, "container.List[string]", ListTypeName(Strings()))
	assert.Equal(t, "container.Map[string,long]", MapTypeName(Strings(), Int64s()))
	assert.Equal(t, "container.Pair[string,long]", PairTypeName(Strings(), Int64s()))
}
