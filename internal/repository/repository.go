// Package repository keeps the artifact catalog: one row per stored entity
// graph, kept in sqlite, PostgreSQL or MySQL.
package repository

import (
	"context"

	"github.com/graphpack/pkg/model"
)

// ArtifactRepository defines the catalog operations.
type ArtifactRepository interface {
	// Save inserts the artifact or replaces the row with the same key.
	Save(ctx context.Context, a *model.Artifact) error

	// GetByKey returns the artifact or a not-found error.
	GetByKey(ctx context.Context, key string) (*model.Artifact, error)

	// List returns artifacts, newest first.
	List(ctx context.Context, opts model.ListOptions) ([]*model.Artifact, error)

	// Delete removes the artifact or returns a not-found error.
	Delete(ctx context.Context, key string) error
}
