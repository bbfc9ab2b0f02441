package holder

import (
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/identity"
)

func (h Holder) expect(kind Kind) error {
	if h.kind != kind {
		return apperrors.Newf(apperrors.CodeStructural, "holder is %s, expected %s", h.kind, kind)
	}
	return nil
}

// scalar returns the value of a kind that is never null.
func scalar[T any](h Holder, kind Kind) (T, error) {
	var zero T
	if err := h.expect(kind); err != nil {
		return zero, err
	}
	if h.null {
		return zero, apperrors.Newf(apperrors.CodeStructural, "%s holder is null", kind)
	}
	v, ok := h.value.(T)
	if !ok {
		return zero, apperrors.Newf(apperrors.CodeStructural, "%s holder carries %T", kind, h.value)
	}
	return v, nil
}

// AsBool returns the held boolean.
func (h Holder) AsBool() (bool, error) { return scalar[bool](h, KindBool) }

// AsByte returns the held byte.
func (h Holder) AsByte() (byte, error) { return scalar[byte](h, KindByte) }

// AsShort returns the held 16-bit integer.
func (h Holder) AsShort() (int16, error) { return scalar[int16](h, KindShort) }

// AsInt returns the held 32-bit integer.
func (h Holder) AsInt() (int32, error) { return scalar[int32](h, KindInt) }

// AsLong returns the held 64-bit integer.
func (h Holder) AsLong() (int64, error) { return scalar[int64](h, KindLong) }

// AsFloat returns the held 32-bit float.
func (h Holder) AsFloat() (float32, error) { return scalar[float32](h, KindFloat) }

// AsDouble returns the held 64-bit float.
func (h Holder) AsDouble() (float64, error) { return scalar[float64](h, KindDouble) }

// AsChar returns the held character.
func (h Holder) AsChar() (rune, error) {
	c, err := scalar[int32](h, KindChar)
	return rune(c), err
}

// AsString returns the held string. A null string yields "" and ok=false.
func (h Holder) AsString() (s string, ok bool, err error) {
	if err := h.expect(KindString); err != nil {
		return "", false, err
	}
	if h.null {
		return "", false, nil
	}
	return h.value.(string), true, nil
}

// AsRef returns the held reference; null yields identity.NilReference.
func (h Holder) AsRef() (identity.Reference, error) {
	if err := h.expect(KindReference); err != nil {
		return identity.NilReference, err
	}
	if h.null {
		return identity.NilReference, nil
	}
	return h.value.(identity.Reference), nil
}

// AsRefs returns the held reference array; null yields nil.
func (h Holder) AsRefs() ([]identity.Reference, error) {
	if err := h.expect(KindReferenceArray); err != nil {
		return nil, err
	}
	if h.null {
		return nil, nil
	}
	return h.value.([]identity.Reference), nil
}

// AsChars returns the held character array; null yields nil.
func (h Holder) AsChars() ([]rune, error) {
	if err := h.expect(KindCharArray); err != nil {
		return nil, err
	}
	if h.null {
		return nil, nil
	}
	return []rune(h.value.([]int32)), nil
}

// ArrayOf returns the primitive array held by h; null yields nil.
func ArrayOf[T ArrayElement](h Holder) ([]T, error) {
	if !h.kind.IsArray() || h.kind == KindCharArray || h.kind == KindReferenceArray {
		return nil, apperrors.Newf(apperrors.CodeStructural, "holder is %s, not a primitive array", h.kind)
	}
	if h.null {
		return nil, nil
	}
	v, ok := h.value.([]T)
	if !ok {
		var zero []T
		return nil, apperrors.Newf(apperrors.CodeStructural, "holder is %s, requested %T", h.kind, zero)
	}
	return v, nil
}
