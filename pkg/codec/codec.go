// Package codec is the binary wire format for bundle sequences.
//
// An encoded artifact is a fixed header followed by a compressed body:
//
//	magic "GPAK" | format version (1) | compression type (1) | xxhash64 of body (8, big-endian) | body
//
// The body uses protobuf wire encoding. It holds a string table shared by
// type and field names, then one length-delimited message per bundle.
// Unknown fields are skipped on decode so newer writers can add fields.
package codec

import (
	"time"

	"github.com/graphpack/pkg/compression"
)

const (
	// Magic identifies a bundle artifact.
	Magic = "GPAK"
	// FormatVersion is the layout version written by Encode.
	FormatVersion = 1

	// HeaderSize is the length of the fixed header preceding the body.
	HeaderSize = len(Magic) + 1 + 1 + 8
)

// Stream message fields.
const (
	fieldStrings = 1
	fieldBundle  = 2
)

// Bundle message fields.
const (
	bundleType    = 1
	bundleVersion = 2
	bundleIDType  = 3
	bundleIDSer   = 4
	bundleField   = 5
	bundleSuper   = 6
)

// Field message fields.
const (
	fieldName  = 1
	fieldKind  = 2
	fieldFlags = 3
	fieldValue = 4
)

const (
	flagMandatory = 1 << 0
	flagNull      = 1 << 1
)

// Options controls encoding.
type Options struct {
	Compression      compression.Type
	CompressionLevel compression.Level
}

// DefaultOptions returns zstd at the default level.
func DefaultOptions() Options {
	return Options{
		Compression:      compression.TypeZstd,
		CompressionLevel: compression.LevelDefault,
	}
}

// Header is the decoded fixed header of an artifact.
type Header struct {
	FormatVersion int
	Compression   compression.Type
	Checksum      uint64
}

// Stats describes one encode call.
type Stats struct {
	Bundles          int
	Fields           int
	StringTableSize  int
	RawSize          int64
	CompressedSize   int64
	CompressionRatio float64
	Checksum         uint64
	Duration         time.Duration
}
