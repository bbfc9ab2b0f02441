package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/model"
)

// GormArtifactRepository implements ArtifactRepository using GORM.
type GormArtifactRepository struct {
	db *gorm.DB
}

// NewGormArtifactRepository creates a new GormArtifactRepository.
func NewGormArtifactRepository(db *gorm.DB) *GormArtifactRepository {
	return &GormArtifactRepository{db: db}
}

// AutoMigrate creates or updates the catalog table.
func (r *GormArtifactRepository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&ArtifactRecord{}); err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to migrate artifact table", err)
	}
	return nil
}

// Save upserts the artifact by key.
func (r *GormArtifactRepository) Save(ctx context.Context, a *model.Artifact) error {
	if a == nil || a.Key == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "artifact key is required")
	}
	rec := recordFromModel(a)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "artifact_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"root_type", "bundle_count", "raw_size", "stored_size",
				"compression", "format_version", "checksum", "location",
			}),
		}).
		Create(rec).Error
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save artifact", err)
	}
	return nil
}

// GetByKey retrieves an artifact by its key.
func (r *GormArtifactRepository) GetByKey(ctx context.Context, key string) (*model.Artifact, error) {
	var rec ArtifactRecord
	err := r.db.WithContext(ctx).Where("artifact_key = ?", key).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "artifact not found: %s", key)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get artifact", err)
	}
	return rec.ToModel(), nil
}

// List returns artifacts newest first.
func (r *GormArtifactRepository) List(ctx context.Context, opts model.ListOptions) ([]*model.Artifact, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if opts.RootType != "" {
		q = q.Where("root_type = ?", opts.RootType)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var recs []ArtifactRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list artifacts", err)
	}

	result := make([]*model.Artifact, len(recs))
	for i := range recs {
		result[i] = recs[i].ToModel()
	}
	return result, nil
}

// Delete removes an artifact by key.
func (r *GormArtifactRepository) Delete(ctx context.Context, key string) error {
	res := r.db.WithContext(ctx).Where("artifact_key = ?", key).Delete(&ArtifactRecord{})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to delete artifact", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "artifact not found: %s", key)
	}
	return nil
}
