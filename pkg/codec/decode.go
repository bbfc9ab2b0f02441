package codec

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/graphpack/pkg/bundle"
	"github.com/graphpack/pkg/compression"
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/holder"
	"github.com/graphpack/pkg/identity"
)

// maxSuperDepth bounds nested super bundles while decoding.
const maxSuperDepth = 64

// ReadHeader parses the fixed header of an artifact.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, apperrors.Newf(apperrors.CodeStructural, "decode: %d bytes is shorter than the header", len(data))
	}
	if string(data[:len(Magic)]) != Magic {
		return Header{}, apperrors.New(apperrors.CodeStructural, "decode: bad magic")
	}
	h := Header{
		FormatVersion: int(data[len(Magic)]),
		Compression:   compression.Type(data[len(Magic)+1]),
		Checksum:      binary.BigEndian.Uint64(data[len(Magic)+2 : HeaderSize]),
	}
	if h.FormatVersion != FormatVersion {
		return Header{}, apperrors.Newf(apperrors.CodeVersion,
			"decode: format version %d is not supported (want %d)", h.FormatVersion, FormatVersion)
	}
	return h, nil
}

// Decode parses an artifact into bundles.
func Decode(data []byte) ([]*bundle.Bundle, error) {
	bundles, _, err := DecodeWithHeader(data)
	return bundles, err
}

// DecodeWithHeader parses an artifact and also returns its header. The
// decompressed body is capped at compression.DefaultMaxDecodedSize.
func DecodeWithHeader(data []byte) ([]*bundle.Bundle, Header, error) {
	return DecodeLimited(data, compression.DefaultMaxDecodedSize)
}

// DecodeLimited is DecodeWithHeader with the decompressed body capped at
// maxBody bytes. A larger body is a structural error.
func DecodeLimited(data []byte, maxBody int64) ([]*bundle.Bundle, Header, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, Header{}, err
	}

	comp, err := compression.NewLimited(h.Compression, compression.LevelDefault, maxBody)
	if err != nil {
		return nil, Header{}, apperrors.Wrap(apperrors.CodeStructural, "decode: compression", err)
	}
	defer compression.Close(comp)

	body, err := comp.Decompress(data[HeaderSize:])
	if err != nil {
		return nil, Header{}, apperrors.Wrap(apperrors.CodeStructural, "decode: decompress body", err)
	}
	if sum := xxhash.Sum64(body); sum != h.Checksum {
		return nil, Header{}, apperrors.Newf(apperrors.CodeStructural,
			"decode: checksum mismatch (header %016x, body %016x)", h.Checksum, sum)
	}

	bundles, err := decodeBody(body)
	if err != nil {
		return nil, Header{}, err
	}
	return bundles, h, nil
}

func malformed(what string, n int) error {
	return apperrors.Wrap(apperrors.CodeStructural, "decode: malformed "+what, protowire.ParseError(n))
}

func decodeBody(body []byte) ([]*bundle.Bundle, error) {
	var strs []string
	var raw [][]byte
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return nil, malformed("stream tag", n)
		}
		body = body[n:]
		switch {
		case num == fieldStrings && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(body)
			if n < 0 {
				return nil, malformed("string table", n)
			}
			strs = append(strs, s)
			body = body[n:]
		case num == fieldBundle && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return nil, malformed("bundle", n)
			}
			raw = append(raw, msg)
			body = body[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return nil, malformed("stream field", n)
			}
			body = body[n:]
		}
	}

	bundles := make([]*bundle.Bundle, 0, len(raw))
	for _, msg := range raw {
		b, err := decodeBundle(msg, strs, 0)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

func lookupString(strs []string, idx uint64) (string, error) {
	if idx >= uint64(len(strs)) {
		return "", apperrors.Newf(apperrors.CodeStructural, "decode: string index %d out of range", idx)
	}
	return strs[idx], nil
}

func decodeBundle(msg []byte, strs []string, depth int) (*bundle.Bundle, error) {
	if depth > maxSuperDepth {
		return nil, apperrors.New(apperrors.CodeStructural, "decode: super bundle chain too deep")
	}

	b := bundle.New("", 0)
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return nil, malformed("bundle tag", n)
		}
		msg = msg[n:]

		switch {
		case typ == protowire.VarintType && (num == bundleType || num == bundleVersion || num == bundleIDType || num == bundleIDSer):
			v, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return nil, malformed("bundle header", n)
			}
			msg = msg[n:]
			if err := setBundleHeader(b, num, v, strs); err != nil {
				return nil, err
			}
		case num == bundleField && typ == protowire.BytesType:
			fm, n := protowire.ConsumeBytes(msg)
			if n < 0 {
				return nil, malformed("field", n)
			}
			msg = msg[n:]
			name, h, err := decodeField(fm, strs)
			if err != nil {
				return nil, err
			}
			if err := b.Put(name, h); err != nil {
				return nil, err
			}
		case num == bundleSuper && typ == protowire.BytesType:
			sm, n := protowire.ConsumeBytes(msg)
			if n < 0 {
				return nil, malformed("super bundle", n)
			}
			msg = msg[n:]
			super, err := decodeBundle(sm, strs, depth+1)
			if err != nil {
				return nil, err
			}
			b.WithSuper(super)
		default:
			n := protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return nil, malformed("bundle field", n)
			}
			msg = msg[n:]
		}
	}

	if depth == 0 {
		if err := b.Validate(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func setBundleHeader(b *bundle.Bundle, num protowire.Number, v uint64, strs []string) error {
	switch num {
	case bundleType:
		name, err := lookupString(strs, v)
		if err != nil {
			return err
		}
		b.TypeName = name
	case bundleVersion:
		if v > math.MaxInt32 {
			return apperrors.Newf(apperrors.CodeStructural, "decode: version %d out of range", v)
		}
		b.Version = int(v)
	case bundleIDType:
		if v > math.MaxUint32 {
			return apperrors.Newf(apperrors.CodeStructural, "decode: type id %d out of range", v)
		}
		b.ID.Type = identity.TypeID(v)
	case bundleIDSer:
		b.ID.Serial = v
	}
	return nil
}

func decodeField(msg []byte, strs []string) (string, holder.Holder, error) {
	var (
		name     string
		kind     holder.Kind
		flags    uint64
		value    any
		hasValue bool
	)
	// The value is decoded after the loop because its layout depends on kind.
	var rawVarint uint64
	var rawBytes []byte
	var rawFixed64 uint64
	var rawFixed32 uint32
	var valueType protowire.Type

	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return "", holder.Holder{}, malformed("field tag", n)
		}
		msg = msg[n:]

		switch {
		case num == fieldName && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return "", holder.Holder{}, malformed("field name", n)
			}
			msg = msg[n:]
			s, err := lookupString(strs, v)
			if err != nil {
				return "", holder.Holder{}, err
			}
			name = s
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return "", holder.Holder{}, malformed("field kind", n)
			}
			msg = msg[n:]
			if v > 255 || !holder.Kind(v).Valid() {
				return "", holder.Holder{}, apperrors.Newf(apperrors.CodeStructural, "decode: unknown holder kind %d", v)
			}
			kind = holder.Kind(v)
		case num == fieldFlags && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return "", holder.Holder{}, malformed("field flags", n)
			}
			msg = msg[n:]
			flags = v
		case num == fieldValue:
			hasValue = true
			valueType = typ
			switch typ {
			case protowire.VarintType:
				rawVarint, n = protowire.ConsumeVarint(msg)
			case protowire.Fixed32Type:
				rawFixed32, n = protowire.ConsumeFixed32(msg)
			case protowire.Fixed64Type:
				rawFixed64, n = protowire.ConsumeFixed64(msg)
			case protowire.BytesType:
				rawBytes, n = protowire.ConsumeBytes(msg)
			default:
				n = protowire.ConsumeFieldValue(num, typ, msg)
			}
			if n < 0 {
				return "", holder.Holder{}, malformed("field value", n)
			}
			msg = msg[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return "", holder.Holder{}, malformed("field", n)
			}
			msg = msg[n:]
		}
	}

	null := flags&flagNull != 0
	mandatory := flags&flagMandatory != 0
	if null && !kind.Nullable() {
		return "", holder.Holder{}, apperrors.Newf(apperrors.CodeStructural, "decode: field %q is null but %s cannot be null", name, kind)
	}
	if null || kind == holder.KindNull {
		return name, holder.Restore(kind, nil, mandatory, true), nil
	}
	if !hasValue {
		return "", holder.Holder{}, apperrors.Newf(apperrors.CodeStructural, "decode: field %q has no value", name)
	}

	var err error
	value, err = decodeValue(kind, valueType, rawVarint, rawFixed32, rawFixed64, rawBytes)
	if err != nil {
		return "", holder.Holder{}, apperrors.Wrap(apperrors.CodeStructural, "decode: field "+name, err)
	}
	return name, holder.Restore(kind, value, mandatory, false), nil
}

func wireMismatch(kind holder.Kind, typ protowire.Type) error {
	return apperrors.Newf(apperrors.CodeStructural, "%s value has wire type %d", kind, typ)
}

func decodeValue(kind holder.Kind, typ protowire.Type, u uint64, f32 uint32, f64 uint64, raw []byte) (any, error) {
	switch kind {
	case holder.KindBool, holder.KindByte, holder.KindShort, holder.KindInt, holder.KindChar, holder.KindLong:
		if typ != protowire.VarintType {
			return nil, wireMismatch(kind, typ)
		}
		return scalarFromVarint(kind, u)
	case holder.KindFloat:
		if typ != protowire.Fixed32Type {
			return nil, wireMismatch(kind, typ)
		}
		return math.Float32frombits(f32), nil
	case holder.KindDouble:
		if typ != protowire.Fixed64Type {
			return nil, wireMismatch(kind, typ)
		}
		return math.Float64frombits(f64), nil
	}

	if typ != protowire.BytesType {
		return nil, wireMismatch(kind, typ)
	}
	switch kind {
	case holder.KindString:
		return string(raw), nil
	case holder.KindByteArray:
		return append([]byte{}, raw...), nil
	case holder.KindReference:
		r, n, err := consumeRef(raw)
		if err != nil {
			return nil, err
		}
		if n != len(raw) {
			return nil, apperrors.New(apperrors.CodeStructural, "trailing bytes after reference")
		}
		return r, nil
	case holder.KindReferenceArray:
		refs := []identity.Reference{}
		for len(raw) > 0 {
			r, n, err := consumeRef(raw)
			if err != nil {
				return nil, err
			}
			refs = append(refs, r)
			raw = raw[n:]
		}
		return refs, nil
	case holder.KindFloatArray:
		if len(raw)%4 != 0 {
			return nil, apperrors.New(apperrors.CodeStructural, "float array length not a multiple of 4")
		}
		out := make([]float32, 0, len(raw)/4)
		for len(raw) > 0 {
			v, n := protowire.ConsumeFixed32(raw)
			out = append(out, math.Float32frombits(v))
			raw = raw[n:]
		}
		return out, nil
	case holder.KindDoubleArray:
		if len(raw)%8 != 0 {
			return nil, apperrors.New(apperrors.CodeStructural, "double array length not a multiple of 8")
		}
		out := make([]float64, 0, len(raw)/8)
		for len(raw) > 0 {
			v, n := protowire.ConsumeFixed64(raw)
			out = append(out, math.Float64frombits(v))
			raw = raw[n:]
		}
		return out, nil
	}

	var vals []uint64
	for len(raw) > 0 {
		v, n := protowire.ConsumeVarint(raw)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		vals = append(vals, v)
		raw = raw[n:]
	}
	switch kind {
	case holder.KindBoolArray:
		out := make([]bool, len(vals))
		for i, v := range vals {
			out[i] = protowire.DecodeBool(v)
		}
		return out, nil
	case holder.KindShortArray:
		out := make([]int16, len(vals))
		for i, v := range vals {
			x := protowire.DecodeZigZag(v)
			if x < math.MinInt16 || x > math.MaxInt16 {
				return nil, apperrors.Newf(apperrors.CodeStructural, "short %d out of range", x)
			}
			out[i] = int16(x)
		}
		return out, nil
	case holder.KindIntArray, holder.KindCharArray:
		out := make([]int32, len(vals))
		for i, v := range vals {
			x := protowire.DecodeZigZag(v)
			if x < math.MinInt32 || x > math.MaxInt32 {
				return nil, apperrors.Newf(apperrors.CodeStructural, "int %d out of range", x)
			}
			out[i] = int32(x)
		}
		return out, nil
	case holder.KindLongArray:
		out := make([]int64, len(vals))
		for i, v := range vals {
			out[i] = protowire.DecodeZigZag(v)
		}
		return out, nil
	}
	return nil, apperrors.Newf(apperrors.CodeStructural, "no wire layout for kind %s", kind)
}

func scalarFromVarint(kind holder.Kind, u uint64) (any, error) {
	switch kind {
	case holder.KindBool:
		if u > 1 {
			return nil, apperrors.Newf(apperrors.CodeStructural, "bool %d out of range", u)
		}
		return u == 1, nil
	case holder.KindByte:
		if u > math.MaxUint8 {
			return nil, apperrors.Newf(apperrors.CodeStructural, "byte %d out of range", u)
		}
		return byte(u), nil
	case holder.KindShort:
		x := protowire.DecodeZigZag(u)
		if x < math.MinInt16 || x > math.MaxInt16 {
			return nil, apperrors.Newf(apperrors.CodeStructural, "short %d out of range", x)
		}
		return int16(x), nil
	case holder.KindInt, holder.KindChar:
		x := protowire.DecodeZigZag(u)
		if x < math.MinInt32 || x > math.MaxInt32 {
			return nil, apperrors.Newf(apperrors.CodeStructural, "int %d out of range", x)
		}
		return int32(x), nil
	default:
		return protowire.DecodeZigZag(u), nil
	}
}

func consumeRef(raw []byte) (identity.Reference, int, error) {
	t, n1 := protowire.ConsumeVarint(raw)
	if n1 < 0 {
		return identity.NilReference, 0, protowire.ParseError(n1)
	}
	s, n2 := protowire.ConsumeVarint(raw[n1:])
	if n2 < 0 {
		return identity.NilReference, 0, protowire.ParseError(n2)
	}
	if t > math.MaxUint32 {
		return identity.NilReference, 0, apperrors.Newf(apperrors.CodeStructural, "reference type id %d out of range", t)
	}
	return identity.Ref(identity.InstanceID{Type: identity.TypeID(t), Serial: s}), n1 + n2, nil
}
