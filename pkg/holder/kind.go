package holder

// Kind tags the value stored in a Holder. Values are part of the wire format;
// append new kinds at the end.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindByte
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindChar
	KindString
	KindBoolArray
	KindByteArray
	KindShortArray
	KindIntArray
	KindLongArray
	KindFloatArray
	KindDoubleArray
	KindCharArray
	KindReference
	KindReferenceArray

	kindCount
)

var kindNames = [...]string{
	KindNull:           "null",
	KindBool:           "bool",
	KindByte:           "byte",
	KindShort:          "short",
	KindInt:            "int",
	KindLong:           "long",
	KindFloat:          "float",
	KindDouble:         "double",
	KindChar:           "char",
	KindString:         "string",
	KindBoolArray:      "bool[]",
	KindByteArray:      "byte[]",
	KindShortArray:     "short[]",
	KindIntArray:       "int[]",
	KindLongArray:      "long[]",
	KindFloatArray:     "float[]",
	KindDoubleArray:    "double[]",
	KindCharArray:      "char[]",
	KindReference:      "ref",
	KindReferenceArray: "ref[]",
}

// String returns the kind's display name.
func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return "unknown"
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k < kindCount
}

// IsArray reports whether k is one of the array forms.
func (k Kind) IsArray() bool {
	return (k >= KindBoolArray && k <= KindCharArray) || k == KindReferenceArray
}

// Nullable reports whether a holder of kind k may hold null.
// Scalars are never null.
func (k Kind) Nullable() bool {
	return k == KindNull || k == KindString || k.IsArray() || k == KindReference
}
