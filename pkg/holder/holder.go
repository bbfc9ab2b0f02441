// Package holder implements the tagged single-field values stored in a bundle.
package holder

import (
	"fmt"

	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/identity"
)

// Holder is a tagged value for one named bundle field. A mandatory holder is
// guaranteed non-null: constructors refuse to build one around a null value.
type Holder struct {
	kind      Kind
	mandatory bool
	null      bool
	value     any
}

// ArrayElement lists the element types accepted by Array.
// []rune is an []int32 to the compiler, so char arrays go through Chars.
type ArrayElement interface {
	bool | byte | int16 | int32 | int64 | float32 | float64
}

// New builds a holder of the given kind. A nil value (or nil slice, or nil
// reference) yields a null holder for nullable kinds; a mandatory null is a
// contract violation. A value whose Go type does not match kind is rejected.
func New(kind Kind, value any, mandatory bool) (Holder, error) {
	if !kind.Valid() {
		return Holder{}, apperrors.Newf(apperrors.CodeContractViolation, "unknown holder kind %d", kind)
	}

	if sp, isPtr := value.(*string); isPtr && kind == KindString {
		if sp == nil {
			value = nil
		} else {
			value = *sp
		}
	}

	null, ok := checkValue(kind, value)
	if !ok {
		return Holder{}, apperrors.Newf(apperrors.CodeContractViolation,
			"value of type %T cannot be held as %s", value, kind)
	}
	if null && mandatory {
		return Holder{}, apperrors.Newf(apperrors.CodeContractViolation,
			"mandatory %s holder constructed with null value", kind)
	}
	if null {
		value = nil
	}
	return Holder{kind: kind, mandatory: mandatory, null: null, value: value}, nil
}

// Restore rebuilds a holder from decoded parts without re-running the
// mandatory check; decoders report a mandatory null as a structural error.
func Restore(kind Kind, value any, mandatory, null bool) Holder {
	if null {
		value = nil
	}
	return Holder{kind: kind, mandatory: mandatory, null: null, value: value}
}

func checkValue(kind Kind, value any) (null bool, ok bool) {
	switch kind {
	case KindNull:
		return true, value == nil
	case KindBool:
		_, ok = value.(bool)
	case KindByte:
		_, ok = value.(byte)
	case KindShort:
		_, ok = value.(int16)
	case KindInt, KindChar:
		_, ok = value.(int32)
	case KindLong:
		_, ok = value.(int64)
	case KindFloat:
		_, ok = value.(float32)
	case KindDouble:
		_, ok = value.(float64)
	case KindString:
		switch value.(type) {
		case nil:
			return true, true
		case string:
			return false, true
		}
		return false, false
	case KindBoolArray:
		return nilSlice[bool](value)
	case KindByteArray:
		return nilSlice[byte](value)
	case KindShortArray:
		return nilSlice[int16](value)
	case KindIntArray, KindCharArray:
		return nilSlice[int32](value)
	case KindLongArray:
		return nilSlice[int64](value)
	case KindFloatArray:
		return nilSlice[float32](value)
	case KindDoubleArray:
		return nilSlice[float64](value)
	case KindReference:
		switch v := value.(type) {
		case nil:
			return true, true
		case identity.Reference:
			return v.IsNil(), true
		}
		return false, false
	case KindReferenceArray:
		return nilSlice[identity.Reference](value)
	}
	return false, ok
}

func nilSlice[T any](value any) (null bool, ok bool) {
	if value == nil {
		return true, true
	}
	s, ok := value.([]T)
	if !ok {
		return false, false
	}
	return s == nil, true
}

// Null returns an optional null holder.
func Null() Holder {
	return Holder{kind: KindNull, null: true}
}

// Bool holds a boolean.
func Bool(v bool) Holder { return Holder{kind: KindBool, value: v} }

// Byte holds a byte.
func Byte(v byte) Holder { return Holder{kind: KindByte, value: v} }

// Short holds a 16-bit integer.
func Short(v int16) Holder { return Holder{kind: KindShort, value: v} }

// Int holds a 32-bit integer.
func Int(v int32) Holder { return Holder{kind: KindInt, value: v} }

// Long holds a 64-bit integer.
func Long(v int64) Holder { return Holder{kind: KindLong, value: v} }

// Float holds a 32-bit float.
func Float(v float32) Holder { return Holder{kind: KindFloat, value: v} }

// Double holds a 64-bit float.
func Double(v float64) Holder { return Holder{kind: KindDouble, value: v} }

// Char holds a single character.
func Char(v rune) Holder { return Holder{kind: KindChar, value: int32(v)} }

// String holds a non-null string.
func String(v string) Holder { return Holder{kind: KindString, value: v} }

// OptString holds a possibly null string.
func OptString(v *string, mandatory bool) (Holder, error) {
	if v == nil {
		return New(KindString, nil, mandatory)
	}
	return New(KindString, *v, mandatory)
}

// Array holds a primitive array. A nil slice is null.
func Array[T ArrayElement](v []T, mandatory bool) (Holder, error) {
	var kind Kind
	switch any(v).(type) {
	case []bool:
		kind = KindBoolArray
	case []byte:
		kind = KindByteArray
	case []int16:
		kind = KindShortArray
	case []int32:
		kind = KindIntArray
	case []int64:
		kind = KindLongArray
	case []float32:
		kind = KindFloatArray
	case []float64:
		kind = KindDoubleArray
	}
	return New(kind, v, mandatory)
}

// Chars holds a character array. A nil slice is null.
func Chars(v []rune, mandatory bool) (Holder, error) {
	return New(KindCharArray, []int32(v), mandatory)
}

// Ref holds an entity reference. The nil reference is null.
func Ref(r identity.Reference, mandatory bool) (Holder, error) {
	return New(KindReference, r, mandatory)
}

// Refs holds an array of entity references. A nil slice is null; individual
// nil references inside a non-null array are allowed.
func Refs(rs []identity.Reference, mandatory bool) (Holder, error) {
	return New(KindReferenceArray, rs, mandatory)
}

// Kind returns the holder's kind.
func (h Holder) Kind() Kind { return h.kind }

// IsNull reports whether the holder holds null.
func (h Holder) IsNull() bool { return h.null }

// IsMandatory reports whether the holder was declared mandatory.
func (h Holder) IsMandatory() bool { return h.mandatory }

// Value returns the raw held value, nil when null.
func (h Holder) Value() any { return h.value }

// References returns the non-nil references held by h.
func (h Holder) References() []identity.Reference {
	if h.null {
		return nil
	}
	switch v := h.value.(type) {
	case identity.Reference:
		return []identity.Reference{v}
	case []identity.Reference:
		out := make([]identity.Reference, 0, len(v))
		for _, r := range v {
			if !r.IsNil() {
				out = append(out, r)
			}
		}
		return out
	}
	return nil
}

// String renders the holder for logs and inspection output.
func (h Holder) String() string {
	if h.null {
		return fmt.Sprintf("%s(null)", h.kind)
	}
	if h.kind == KindChar {
		return fmt.Sprintf("char(%q)", rune(h.value.(int32)))
	}
	return fmt.Sprintf("%s(%v)", h.kind, h.value)
}
