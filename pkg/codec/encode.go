package codec

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/graphpack/pkg/bundle"
	"github.com/graphpack/pkg/compression"
	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/holder"
	"github.com/graphpack/pkg/identity"
)

// stringTable deduplicates type and field names. Index 0 is "".
type stringTable struct {
	index map[string]uint64
	list  []string
}

func newStringTable() *stringTable {
	return &stringTable{index: map[string]uint64{"": 0}, list: []string{""}}
}

func (t *stringTable) id(s string) uint64 {
	if i, ok := t.index[s]; ok {
		return i
	}
	i := uint64(len(t.list))
	t.index[s] = i
	t.list = append(t.list, s)
	return i
}

// Encode serializes bundles into an artifact.
func Encode(bundles []*bundle.Bundle, opts Options) ([]byte, *Stats, error) {
	start := time.Now()
	stats := &Stats{Bundles: len(bundles)}

	strs := newStringTable()
	var msgs [][]byte
	for i, b := range bundles {
		if b == nil {
			return nil, nil, apperrors.Newf(apperrors.CodeInvalidInput, "encode: bundle %d is nil", i)
		}
		msg, err := appendBundle(nil, b, strs, stats)
		if err != nil {
			return nil, nil, err
		}
		msgs = append(msgs, msg)
	}

	var body []byte
	for _, s := range strs.list {
		body = protowire.AppendTag(body, fieldStrings, protowire.BytesType)
		body = protowire.AppendString(body, s)
	}
	for _, msg := range msgs {
		body = protowire.AppendTag(body, fieldBundle, protowire.BytesType)
		body = protowire.AppendBytes(body, msg)
	}

	comp, err := compression.New(opts.Compression, opts.CompressionLevel)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeInvalidInput, "encode: compression", err)
	}
	defer compression.Close(comp)

	compressed, err := comp.Compress(body)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeUnknown, "encode: compress body", err)
	}

	checksum := xxhash.Sum64(body)
	out := make([]byte, 0, HeaderSize+len(compressed))
	out = append(out, Magic...)
	out = append(out, FormatVersion, byte(comp.Type()))
	out = binary.BigEndian.AppendUint64(out, checksum)
	out = append(out, compressed...)

	stats.StringTableSize = len(strs.list)
	stats.RawSize = int64(len(body))
	stats.CompressedSize = int64(len(compressed))
	if stats.RawSize > 0 {
		stats.CompressionRatio = float64(stats.CompressedSize) / float64(stats.RawSize)
	}
	stats.Checksum = checksum
	stats.Duration = time.Since(start)
	return out, stats, nil
}

func appendBundle(buf []byte, b *bundle.Bundle, strs *stringTable, stats *Stats) ([]byte, error) {
	if b.Version < 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "encode: %s has negative version", b.TypeName)
	}
	buf = protowire.AppendTag(buf, bundleType, protowire.VarintType)
	buf = protowire.AppendVarint(buf, strs.id(b.TypeName))
	buf = protowire.AppendTag(buf, bundleVersion, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(b.Version))
	if !b.ID.IsZero() {
		buf = protowire.AppendTag(buf, bundleIDType, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(b.ID.Type))
		buf = protowire.AppendTag(buf, bundleIDSer, protowire.VarintType)
		buf = protowire.AppendVarint(buf, b.ID.Serial)
	}

	for _, f := range b.Fields() {
		msg, err := appendField(nil, f, strs)
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, bundleField, protowire.BytesType)
		buf = protowire.AppendBytes(buf, msg)
		stats.Fields++
	}

	if b.Super != nil {
		msg, err := appendBundle(nil, b.Super, strs, stats)
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, bundleSuper, protowire.BytesType)
		buf = protowire.AppendBytes(buf, msg)
	}
	return buf, nil
}

func appendField(buf []byte, f bundle.Field, strs *stringTable) ([]byte, error) {
	h := f.Holder
	var flags uint64
	if h.IsMandatory() {
		flags |= flagMandatory
	}
	if h.IsNull() {
		flags |= flagNull
	}

	buf = protowire.AppendTag(buf, fieldName, protowire.VarintType)
	buf = protowire.AppendVarint(buf, strs.id(f.Name))
	buf = protowire.AppendTag(buf, fieldKind, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(h.Kind()))
	buf = protowire.AppendTag(buf, fieldFlags, protowire.VarintType)
	buf = protowire.AppendVarint(buf, flags)
	if h.IsNull() {
		return buf, nil
	}
	return appendValue(buf, f.Name, h)
}

func appendValue(buf []byte, name string, h holder.Holder) ([]byte, error) {
	v := h.Value()
	switch h.Kind() {
	case holder.KindBool:
		buf = protowire.AppendTag(buf, fieldValue, protowire.VarintType)
		return protowire.AppendVarint(buf, protowire.EncodeBool(v.(bool))), nil
	case holder.KindByte:
		buf = protowire.AppendTag(buf, fieldValue, protowire.VarintType)
		return protowire.AppendVarint(buf, uint64(v.(byte))), nil
	case holder.KindShort:
		buf = protowire.AppendTag(buf, fieldValue, protowire.VarintType)
		return protowire.AppendVarint(buf, protowire.EncodeZigZag(int64(v.(int16)))), nil
	case holder.KindInt, holder.KindChar:
		buf = protowire.AppendTag(buf, fieldValue, protowire.VarintType)
		return protowire.AppendVarint(buf, protowire.EncodeZigZag(int64(v.(int32)))), nil
	case holder.KindLong:
		buf = protowire.AppendTag(buf, fieldValue, protowire.VarintType)
		return protowire.AppendVarint(buf, protowire.EncodeZigZag(v.(int64))), nil
	case holder.KindFloat:
		buf = protowire.AppendTag(buf, fieldValue, protowire.Fixed32Type)
		return protowire.AppendFixed32(buf, math.Float32bits(v.(float32))), nil
	case holder.KindDouble:
		buf = protowire.AppendTag(buf, fieldValue, protowire.Fixed64Type)
		return protowire.AppendFixed64(buf, math.Float64bits(v.(float64))), nil
	case holder.KindString:
		buf = protowire.AppendTag(buf, fieldValue, protowire.BytesType)
		return protowire.AppendString(buf, v.(string)), nil
	case holder.KindByteArray:
		buf = protowire.AppendTag(buf, fieldValue, protowire.BytesType)
		return protowire.AppendBytes(buf, v.([]byte)), nil
	case holder.KindReference:
		buf = protowire.AppendTag(buf, fieldValue, protowire.BytesType)
		return protowire.AppendBytes(buf, appendRef(nil, v.(identity.Reference))), nil
	}

	var packed []byte
	switch vs := v.(type) {
	case []bool:
		for _, x := range vs {
			packed = protowire.AppendVarint(packed, protowire.EncodeBool(x))
		}
	case []int16:
		for _, x := range vs {
			packed = protowire.AppendVarint(packed, protowire.EncodeZigZag(int64(x)))
		}
	case []int32:
		for _, x := range vs {
			packed = protowire.AppendVarint(packed, protowire.EncodeZigZag(int64(x)))
		}
	case []int64:
		for _, x := range vs {
			packed = protowire.AppendVarint(packed, protowire.EncodeZigZag(x))
		}
	case []float32:
		for _, x := range vs {
			packed = protowire.AppendFixed32(packed, math.Float32bits(x))
		}
	case []float64:
		for _, x := range vs {
			packed = protowire.AppendFixed64(packed, math.Float64bits(x))
		}
	case []identity.Reference:
		for _, r := range vs {
			packed = appendRef(packed, r)
		}
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidInput,
			"encode: field %q holds %T under kind %s", name, v, h.Kind())
	}
	buf = protowire.AppendTag(buf, fieldValue, protowire.BytesType)
	return protowire.AppendBytes(buf, packed), nil
}

// appendRef writes a reference as two varints. The nil reference is 0, 0.
func appendRef(buf []byte, r identity.Reference) []byte {
	buf = protowire.AppendVarint(buf, uint64(r.ID.Type))
	return protowire.AppendVarint(buf, r.ID.Serial)
}
