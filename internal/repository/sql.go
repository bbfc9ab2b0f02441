package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/model"
)

// Dialect selects placeholder and upsert syntax for SQLArtifactRepository.
type Dialect int

const (
	// DialectPostgres uses $n placeholders and ON CONFLICT.
	DialectPostgres Dialect = iota
	// DialectMySQL uses ? placeholders and ON DUPLICATE KEY UPDATE.
	DialectMySQL
	// DialectSQLite uses ? placeholders and ON CONFLICT.
	DialectSQLite
)

const artifactColumns = `artifact_key, root_type, bundle_count, raw_size, stored_size, compression, format_version, checksum, location, created_at`

// SQLArtifactRepository implements ArtifactRepository on database/sql with
// hand-written statements, for deployments that manage the schema themselves.
type SQLArtifactRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLArtifactRepository creates a repository for the given dialect.
func NewSQLArtifactRepository(db *sql.DB, dialect Dialect) *SQLArtifactRepository {
	return &SQLArtifactRepository{db: db, dialect: dialect}
}

// bind rewrites ? placeholders for the dialect.
func (r *SQLArtifactRepository) bind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Save upserts the artifact by key.
func (r *SQLArtifactRepository) Save(ctx context.Context, a *model.Artifact) error {
	if a == nil || a.Key == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "artifact key is required")
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `INSERT INTO graphpack_artifacts (` + artifactColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if r.dialect == DialectMySQL {
		query += ` ON DUPLICATE KEY UPDATE root_type = VALUES(root_type), bundle_count = VALUES(bundle_count),
			raw_size = VALUES(raw_size), stored_size = VALUES(stored_size), compression = VALUES(compression),
			format_version = VALUES(format_version), checksum = VALUES(checksum), location = VALUES(location)`
	} else {
		query += ` ON CONFLICT (artifact_key) DO UPDATE SET root_type = EXCLUDED.root_type,
			bundle_count = EXCLUDED.bundle_count, raw_size = EXCLUDED.raw_size, stored_size = EXCLUDED.stored_size,
			compression = EXCLUDED.compression, format_version = EXCLUDED.format_version,
			checksum = EXCLUDED.checksum, location = EXCLUDED.location`
	}

	_, err := r.db.ExecContext(ctx, r.bind(query),
		a.Key, a.RootType, a.BundleCount, a.RawSize, a.StoredSize,
		a.Compression, a.FormatVersion, a.Checksum, a.Location, createdAt,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save artifact", err)
	}
	return nil
}

// GetByKey retrieves an artifact by its key.
func (r *SQLArtifactRepository) GetByKey(ctx context.Context, key string) (*model.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM graphpack_artifacts WHERE artifact_key = ?`

	a, err := scanArtifact(r.db.QueryRowContext(ctx, r.bind(query), key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "artifact not found: %s", key)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get artifact", err)
	}
	return a, nil
}

// List returns artifacts newest first.
func (r *SQLArtifactRepository) List(ctx context.Context, opts model.ListOptions) ([]*model.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM graphpack_artifacts`
	var args []any
	if opts.RootType != "" {
		query += ` WHERE root_type = ?`
		args = append(args, opts.RootType)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, r.bind(query), args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list artifacts", err)
	}
	defer rows.Close()

	var result []*model.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to scan artifact", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list artifacts", err)
	}
	return result, nil
}

// Delete removes an artifact by key.
func (r *SQLArtifactRepository) Delete(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, r.bind(`DELETE FROM graphpack_artifacts WHERE artifact_key = ?`), key)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to delete artifact", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to delete artifact", err)
	}
	if n == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "artifact not found: %s", key)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*model.Artifact, error) {
	a := &model.Artifact{}
	var location sql.NullString
	err := row.Scan(
		&a.Key, &a.RootType, &a.BundleCount, &a.RawSize, &a.StoredSize,
		&a.Compression, &a.FormatVersion, &a.Checksum, &location, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Location = location.String
	return a, nil
}
