package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "github.com/size-analysis/pkg/errors"
	"github.com/size-analysis/pkg/model"
)

// Dialect selects placeholder syntax for SQLLoadRepository.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

const loadColumns = `id, session_id, input, options, COALESCE(fingerprint, ''), status,
		file_entries, root_size, diff_mode, COALESCE(error, ''), started_at, finished_at`

// SQLLoadRepository implements LoadRepository over database/sql, for
// deployments that share a pool with other services.
type SQLLoadRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLLoadRepository creates a new SQLLoadRepository.
func NewSQLLoadRepository(db *sql.DB, dialect Dialect) *SQLLoadRepository {
	return &SQLLoadRepository{db: db, dialect: dialect}
}

// bind rewrites "?" placeholders for the dialect.
func (r *SQLLoadRepository) bind(query string) string {
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

// CreateLoad inserts a new load.
func (r *SQLLoadRepository) CreateLoad(ctx context.Context, rec *model.LoadRecord) error {
	query := r.bind(`
		INSERT INTO size_load (id, session_id, input, options, fingerprint, status,
			file_entries, root_size, diff_mode, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.SessionID, rec.Input, rec.Options, rec.Fingerprint, rec.Status,
		rec.FileEntries, rec.RootSize, rec.DiffMode, rec.Error, rec.StartedAt,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to create load", err)
	}
	return nil
}

// FinishLoad stores the outcome of a load.
func (r *SQLLoadRepository) FinishLoad(ctx context.Context, id string, outcome *LoadOutcome) error {
	query := r.bind(`
		UPDATE size_load
		SET status = ?, file_entries = ?, root_size = ?, diff_mode = ?,
			fingerprint = ?, error = ?, finished_at = ?
		WHERE id = ?
	`)
	res, err := r.db.ExecContext(ctx, query,
		outcome.Status, outcome.FileEntries, outcome.RootSize, outcome.DiffMode,
		outcome.Fingerprint, outcome.Error, outcome.FinishedAt, id,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to finish load", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to finish load", err)
	}
	if affected == 0 {
		return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("load not found: %s", id))
	}
	return nil
}

// GetLoad retrieves a load by its ID.
func (r *SQLLoadRepository) GetLoad(ctx context.Context, id string) (*model.LoadRecord, error) {
	query := r.bind(`SELECT ` + loadColumns + ` FROM size_load WHERE id = ?`)

	rec, err := scanLoad(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("load not found: %s", id))
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get load", err)
	}
	return rec, nil
}

// ListLoads returns the most recent loads.
func (r *SQLLoadRepository) ListLoads(ctx context.Context, sessionID string, limit int) ([]*model.LoadRecord, error) {
	query := `SELECT ` + loadColumns + ` FROM size_load`
	args := []interface{}{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, normalizeLimit(limit))

	rows, err := r.db.QueryContext(ctx, r.bind(query), args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list loads", err)
	}
	defer rows.Close()

	var result []*model.LoadRecord
	for rows.Next() {
		rec, err := scanLoad(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to scan load", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list loads", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLoad(row rowScanner) (*model.LoadRecord, error) {
	rec := &model.LoadRecord{}
	var finishedAt sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.SessionID, &rec.Input, &rec.Options, &rec.Fingerprint, &rec.Status,
		&rec.FileEntries, &rec.RootSize, &rec.DiffMode, &rec.Error, &rec.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		rec.FinishedAt = &finishedAt.Time
	}
	return rec, nil
}
