package repository

import (
	"time"

	"github.com/graphpack/pkg/model"
)

// ArtifactRecord represents the graphpack_artifacts table.
type ArtifactRecord struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Key           string    `gorm:"column:artifact_key;type:varchar(128);uniqueIndex"`
	RootType      string    `gorm:"column:root_type;type:varchar(255);index"`
	BundleCount   int       `gorm:"column:bundle_count"`
	RawSize       int64     `gorm:"column:raw_size"`
	StoredSize    int64     `gorm:"column:stored_size"`
	Compression   string    `gorm:"column:compression;type:varchar(16)"`
	FormatVersion int       `gorm:"column:format_version"`
	Checksum      string    `gorm:"column:checksum;type:varchar(16)"`
	Location      string    `gorm:"column:location;type:varchar(512)"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for ArtifactRecord.
func (ArtifactRecord) TableName() string {
	return "graphpack_artifacts"
}

// ToModel converts the row to model.Artifact.
func (r *ArtifactRecord) ToModel() *model.Artifact {
	return &model.Artifact{
		Key:           r.Key,
		RootType:      r.RootType,
		BundleCount:   r.BundleCount,
		RawSize:       r.RawSize,
		StoredSize:    r.StoredSize,
		Compression:   r.Compression,
		FormatVersion: r.FormatVersion,
		Checksum:      r.Checksum,
		Location:      r.Location,
		CreatedAt:     r.CreatedAt,
	}
}

func recordFromModel(a *model.Artifact) *ArtifactRecord {
	return &ArtifactRecord{
		Key:           a.Key,
		RootType:      a.RootType,
		BundleCount:   a.BundleCount,
		RawSize:       a.RawSize,
		StoredSize:    a.StoredSize,
		Compression:   a.Compression,
		FormatVersion: a.FormatVersion,
		Checksum:      a.Checksum,
		Location:      a.Location,
		CreatedAt:     a.CreatedAt,
	}
}
