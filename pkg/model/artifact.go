// Package model defines the records shared by the storage, catalog and
// service layers.
package model

import "time"

// Artifact describes one stored entity graph: where its encoded bytes live
// and what the codec reported when writing them.
type Artifact struct {
	Key           string    `json:"key" yaml:"key"`
	RootType      string    `json:"root_type" yaml:"root_type"`
	BundleCount   int       `json:"bundle_count" yaml:"bundle_count"`
	RawSize       int64     `json:"raw_size" yaml:"raw_size"`
	StoredSize    int64     `json:"stored_size" yaml:"stored_size"`
	Compression   string    `json:"compression" yaml:"compression"`
	FormatVersion int       `json:"format_version" yaml:"format_version"`
	Checksum      string    `json:"checksum" yaml:"checksum"` // xxhash64, hex
	Location      string    `json:"location" yaml:"location"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
}

// ListOptions filters and pages catalog listings. A zero Limit means no limit.
type ListOptions struct {
	RootType string
	Limit    int
	Offset   int
}
