package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/graphpack/pkg/errors"
	"github.com/graphpack/pkg/model"
)

var artifactColumnNames = []string{
	"artifact_key", "root_type", "bundle_count", "raw_size", "stored_size",
	"compression", "format_version", "checksum", "location", "created_at",
}

func TestSQLArtifactRepository_Bind(t *testing.T) {
	pg := NewSQLArtifactRepository(nil, DialectPostgres)
	assert.Equal(t, "a = $1 AND b = $2", pg.bind("a = ? AND b = ?"))

	my := NewSQLArtifactRepository(nil, DialectMySQL)
	assert.Equal(t, "a = ? AND b = ?", my.bind("a = ? AND b = ?"))
}

func TestSQLArtifactRepository_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLArtifactRepository(db, DialectPostgres)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Save", func(t *testing.T) {
		a := sampleArtifact("k1", "demo.Team", created)
		mock.ExpectExec(`(?s)INSERT INTO graphpack_artifacts .* ON CONFLICT \(artifact_key\) DO UPDATE`).
			WithArgs("k1", "demo.Team", 7, int64(1024), int64(300), "zstd", 1, "00ff00ff00ff00ff", "artifacts/k1.gpak", created).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, repo.Save(ctx, a))
	})

	t.Run("GetByKey", func(t *testing.T) {
		rows := sqlmock.NewRows(artifactColumnNames).
			AddRow("k1", "demo.Team", 7, int64(1024), int64(300), "zstd", 1, "00ff00ff00ff00ff", nil, created)
		mock.ExpectQuery(`SELECT artifact_key, .* WHERE artifact_key = \$1`).
			WithArgs("k1").
			WillReturnRows(rows)

		got, err := repo.GetByKey(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "demo.Team", got.RootType)
		assert.Equal(t, created, got.CreatedAt)
		assert.Empty(t, got.Location)
	})

	t.Run("GetByKey_NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT artifact_key`).
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(artifactColumnNames))

		_, err := repo.GetByKey(ctx, "nope")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("List_FilterAndPage", func(t *testing.T) {
		rows := sqlmock.NewRows(artifactColumnNames).
			AddRow("k2", "demo.Team", 1, int64(10), int64(5), "none", 1, "01", "l2", created).
			AddRow("k1", "demo.Team", 7, int64(1024), int64(300), "zstd", 1, "02", "l1", created)
		mock.ExpectQuery(`WHERE root_type = \$1 ORDER BY created_at DESC, id DESC LIMIT \$2 OFFSET \$3`).
			WithArgs("demo.Team", 2, 4).
			WillReturnRows(rows)

		got, err := repo.List(ctx, model.ListOptions{RootType: "demo.Team", Limit: 2, Offset: 4})
		require.NoError(t, err)
		assert.Equal(t, []string{"k2", "k1"}, keysOf(got))
	})

	t.Run("Delete_NotFound", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM graphpack_artifacts WHERE artifact_key = \$1`).
			WithArgs("gone").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(ctx, "gone")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectExec(`DELETE FROM graphpack_artifacts`).
			WillReturnError(errors.New("connection reset"))

		err := repo.Delete(ctx, "k1")
		assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetErrorCode(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLArtifactRepository_MySQLUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLArtifactRepository(db, DialectMySQL)
	mock.ExpectExec(`(?s)INSERT INTO graphpack_artifacts .* VALUES \(\?, \?, .* ON DUPLICATE KEY UPDATE`).
		WithArgs("k1", "demo.Team", 7, int64(1024), int64(300), "zstd", 1, "00ff00ff00ff00ff", "artifacts/k1.gpak", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	a := sampleArtifact("k1", "demo.Team", time.Time{})
	require.NoError(t, repo.Save(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}
