package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/size-analysis/pkg/errors"
	"github.com/size-analysis/pkg/model"
)

var loadRowColumns = []string{
	"id", "session_id", "input", "options", "fingerprint", "status",
	"file_entries", "root_size", "diff_mode", "error", "started_at", "finished_at",
}

func TestSQLLoadRepository_Bind(t *testing.T) {
	pg := NewSQLLoadRepository(nil, DialectPostgres)
	my := NewSQLLoadRepository(nil, DialectMySQL)

	assert.Equal(t, "a = $1 AND b = $2", pg.bind("a = ? AND b = ?"))
	assert.Equal(t, "a = ? AND b = ?", my.bind("a = ? AND b = ?"))
}

func TestSQLLoadRepository_CreateLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLLoadRepository(db, DialectPostgres)
	rec := newRecord("load-1", "s1", time.Now())

	t.Run("CreateLoad_Success", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO size_load")).
			WithArgs(rec.ID, rec.SessionID, rec.Input, rec.Options, rec.Fingerprint, rec.Status,
				rec.FileEntries, rec.RootSize, rec.DiffMode, rec.Error, rec.StartedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.CreateLoad(context.Background(), rec))
	})

	t.Run("CreateLoad_Error", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO size_load").WillReturnError(errors.New("connection refused"))

		err := repo.CreateLoad(context.Background(), rec)
		assert.Error(t, err)
		assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetErrorCode(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLoadRepository_FinishLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLLoadRepository(db, DialectMySQL)
	outcome := &LoadOutcome{Status: model.LoadStatusCompleted, FileEntries: 3, RootSize: 12, FinishedAt: time.Now()}

	t.Run("FinishLoad_Success", func(t *testing.T) {
		mock.ExpectExec("UPDATE size_load").WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.FinishLoad(context.Background(), "load-1", outcome))
	})

	t.Run("FinishLoad_NotFound", func(t *testing.T) {
		mock.ExpectExec("UPDATE size_load").WillReturnResult(sqlmock.NewResult(0, 0))
		err := repo.FinishLoad(context.Background(), "missing", outcome)
		assert.True(t, apperrors.IsNotFound(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLoadRepository_GetLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLLoadRepository(db, DialectPostgres)
	started := time.Now().Add(-time.Minute)
	finished := time.Now()

	t.Run("GetLoad_Success", func(t *testing.T) {
		rows := sqlmock.NewRows(loadRowColumns).AddRow(
			"load-1", "s1", "file:///tmp/a.ndjson", "", "ff00", int(model.LoadStatusCompleted),
			int64(7), 1024.0, false, "", started, finished,
		)
		mock.ExpectQuery(regexp.QuoteMeta("FROM size_load WHERE id = $1")).
			WithArgs("load-1").
			WillReturnRows(rows)

		rec, err := repo.GetLoad(context.Background(), "load-1")
		require.NoError(t, err)
		assert.Equal(t, model.LoadStatusCompleted, rec.Status)
		assert.Equal(t, int64(7), rec.FileEntries)
		require.NotNil(t, rec.FinishedAt)
		assert.True(t, finished.Equal(*rec.FinishedAt))
	})

	t.Run("GetLoad_NotFound", func(t *testing.T) {
		mock.ExpectQuery("FROM size_load").WillReturnError(sql.ErrNoRows)

		rec, err := repo.GetLoad(context.Background(), "missing")
		assert.Nil(t, rec)
		assert.True(t, apperrors.IsNotFound(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLoadRepository_ListLoads(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLLoadRepository(db, DialectPostgres)

	t.Run("ListLoads_BySession", func(t *testing.T) {
		rows := sqlmock.NewRows(loadRowColumns).
			AddRow("b", "s1", "in", "", "", int(model.LoadStatusRunning), int64(0), 0.0, false, "", time.Now(), nil).
			AddRow("a", "s1", "in", "", "", int(model.LoadStatusFailed), int64(1), 5.0, false, "boom", time.Now(), time.Now())
		mock.ExpectQuery(regexp.QuoteMeta("WHERE session_id = $1 ORDER BY started_at DESC LIMIT $2")).
			WithArgs("s1", 5).
			WillReturnRows(rows)

		recs, err := repo.ListLoads(context.Background(), "s1", 5)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Nil(t, recs[0].FinishedAt)
		assert.Equal(t, "boom", recs[1].Error)
	})

	t.Run("ListLoads_DefaultLimit", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY started_at DESC LIMIT $1")).
			WithArgs(DefaultListLimit).
			WillReturnRows(sqlmock.NewRows(loadRowColumns))

		recs, err := repo.ListLoads(context.Background(), "", 0)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
