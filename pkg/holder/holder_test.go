package holder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/identity"
)

func TestScalarConstructors(t *testing.T) {
	tests := []struct {
		name  string
		h     Holder
		kind  Kind
		value any
	}{
		{"bool", Bool(true), KindBool, true},
		{"byte", Byte(7), KindByte, byte(7)},
		{"short", Short(-3), KindShort, int16(-3)},
		{"int", Int(42), KindInt, int32(42)},
		{"long", Long(1 << 40), KindLong, int64(1 << 40)},
		{"float", Float(1.5), KindFloat, float32(1.5)},
		{"double", Double(2.25), KindDouble, 2.25},
		{"char", Char('é'), KindChar, int32('é')},
		{"string", String("x"), KindString, "x"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.h.Kind())
			assert.Equal(t, tt.value, tt.h.Value())
			assert.False(t, tt.h.IsNull())
		})
	}
}

func TestMandatoryNullFailsAtConstruction(t *testing.T) {
	tests := []struct {
		name  string
		build func() (Holder, error)
	}{
		{"ref", func() (Holder, error) { return Ref(identity.NilReference, true) }},
		{"refs", func() (Holder, error) { return Refs(nil, true) }},
		{"string", func() (Holder, error) { return OptString(nil, true) }},
		{"bytes", func() (Holder, error) { return Array[byte](nil, true) }},
		{"chars", func() (Holder, error) { return Chars(nil, true) }},
		{"generic", func() (Holder, error) { return New(KindLongArray, nil, true) }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			require.Error(t, err)
			assert.True(t, apperrors.IsContractViolation(err))
		})
	}
}

func TestOptionalNullIsAllowed(t *testing.T) {
	h, err := Ref(identity.NilReference, false)
	require.NoError(t, err)
	assert.True(t, h.IsNull())
	assert.Equal(t, KindReference, h.Kind())

	r, err := h.AsRef()
	require.NoError(t, err)
	assert.True(t, r.IsNil())

	s, err := OptString(nil, false)
	require.NoError(t, err)
	_, ok, err := s.AsString()
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, Null().IsNull())
}

func TestNew_RejectsMismatchedValue(t *testing.T) {
	_, err := New(KindInt, "not an int", false)
	assert.True(t, apperrors.IsContractViolation(err))

	_, err = New(KindBool, nil, false)
	assert.True(t, apperrors.IsContractViolation(err), "scalars are never null")

	_, err = New(Kind(200), 1, false)
	assert.True(t, apperrors.IsContractViolation(err))
}

func TestArrays(t *testing.T) {
	h, err := Array([]int64{1, 2, 3}, true)
	require.NoError(t, err)
	assert.Equal(t, KindLongArray, h.Kind())

	longs, err := ArrayOf[int64](h)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, longs)

	_, err = ArrayOf[int32](h)
	assert.True(t, apperrors.IsStructuralError(err))

	b, err := Array([]byte("raw"), false)
	require.NoError(t, err)
	assert.Equal(t, KindByteArray, b.Kind())

	c, err := Chars([]rune("hé"), false)
	require.NoError(t, err)
	runes, err := c.AsChars()
	require.NoError(t, err)
	assert.Equal(t, []rune("hé"), runes)

	_, err = ArrayOf[int32](c)
	assert.Error(t, err, "char arrays are read with AsChars")
}

func TestAccessorsRejectWrongKind(t *testing.T) {
	h := Int(1)

	_, err := h.AsLong()
	assert.True(t, apperrors.IsStructuralError(err))
	_, _, err = h.AsString()
	assert.True(t, apperrors.IsStructuralError(err))
	_, err = h.AsRef()
	assert.True(t, apperrors.IsStructuralError(err))

	v, err := h.AsInt()
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)
}

func TestScalarAccessorsRejectNull(t *testing.T) {
	tests := []struct {
		kind Kind
		read func(Holder) error
	}{
		{KindBool, func(h Holder) error { _, err := h.AsBool(); return err }},
		{KindByte, func(h Holder) error { _, err := h.AsByte(); return err }},
		{KindShort, func(h Holder) error { _, err := h.AsShort(); return err }},
		{KindInt, func(h Holder) error { _, err := h.AsInt(); return err }},
		{KindLong, func(h Holder) error { _, err := h.AsLong(); return err }},
		{KindFloat, func(h Holder) error { _, err := h.AsFloat(); return err }},
		{KindDouble, func(h Holder) error { _, err := h.AsDouble(); return err }},
		{KindChar, func(h Holder) error { _, err := h.AsChar(); return err }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.kind.String(), func(t *testing.T) {
			var err error
			assert.NotPanics(t, func() { err = tt.read(Restore(tt.kind, nil, false, true)) })
			assert.True(t, apperrors.IsStructuralError(err))

			assert.NotPanics(t, func() { err = tt.read(Restore(tt.kind, "wrong", false, false)) })
			assert.True(t, apperrors.IsStructuralError(err))
		})
	}
}

func TestNew_StringPointer(t *testing.T) {
	s := "nick"
	h, err := New(KindString, &s, true)
	require.NoError(t, err)
	v, ok, err := h.AsString()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "nick", v)

	var missing *string
	h, err = New(KindString, missing, false)
	require.NoError(t, err)
	assert.True(t, h.IsNull())

	_, err = New(KindString, missing, true)
	assert.True(t, apperrors.IsContractViolation(err))
}

func TestReferences(t *testing.T) {
	a := identity.Ref(identity.InstanceID{Type: 1, Serial: 10})
	b := identity.Ref(identity.InstanceID{Type: 1, Serial: 11})

	single, err := Ref(a, true)
	require.NoError(t, err)
	assert.Equal(t, []identity.Reference{a}, single.References())

	many, err := Refs([]identity.Reference{a, identity.NilReference, b}, false)
	require.NoError(t, err)
	assert.Equal(t, []identity.Reference{a, b}, many.References())

	assert.Empty(t, Long(3).References())
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ref[]", KindReferenceArray.String())
	assert.Equal(t, "unknown", Kind(99).String())
	assert.True(t, KindCharArray.IsArray())
	assert.True(t, KindReferenceArray.IsArray())
	assert.False(t, KindReference.IsArray())
	assert.True(t, KindString.Nullable())
	assert.False(t, KindDouble.Nullable())
}

func TestString(t *testing.T) {
	assert.Equal(t, "int(5)", Int(5).String())
	assert.Equal(t, "char('x')", Char('x').String())
	assert.Equal(t, "null(null)", Null().String())
}
