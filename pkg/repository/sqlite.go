package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mortality-lab/kcor/pkg/domain/interfaces"
	"github.com/mortality-lab/kcor/pkg/domain/model"
	"github.com/mortality-lab/kcor/pkg/domain/types"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	status     TEXT NOT NULL,
	record     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at DESC);
`

// SQLite implements RunRepository interface with an embedded SQLite database.
// Records are stored as JSON documents keyed by run ID.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and creates if needed) the database at path
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, goerr.New("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to connect sqlite database", goerr.V("path", path))
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to apply sqlite schema", goerr.V("path", path))
	}

	ctxlog.From(ctx).Info("SQLite repository initialized successfully", "path", path)
	return &SQLite{db: db}, nil
}

// PutRun saves or replaces a run record
func (s *SQLite) PutRun(ctx context.Context, run *model.RunRecord) error {
	if run == nil {
		return goerr.New("run is nil")
	}
	if err := run.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid run ID")
	}

	data, err := json.Marshal(run)
	if err != nil {
		return goerr.Wrap(err, "failed to encode run", goerr.V("id", run.ID))
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status, record) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET started_at = excluded.started_at, status = excluded.status, record = excluded.record`,
		run.ID.String(), run.StartedAt.UTC().UnixNano(), string(run.Status), string(data))
	if err != nil {
		return goerr.Wrap(err, "failed to save run to sqlite", goerr.V("id", run.ID))
	}
	return nil
}

// GetRun retrieves a run by ID
func (s *SQLite) GetRun(ctx context.Context, id types.RunID) (*model.RunRecord, error) {
	if id == "" {
		return nil, goerr.New("run ID is empty")
	}

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM runs WHERE id = ?`, id.String()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(model.ErrRunNotFound, "failed to get run", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get run from sqlite", goerr.V("id", id))
	}
	return decodeRun(data)
}

// ListRuns lists runs newest first
func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	query := `SELECT record FROM runs ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list runs from sqlite")
	}
	defer rows.Close()

	var runs []*model.RunRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, goerr.Wrap(err, "failed to scan run")
		}
		run, err := decodeRun(data)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate runs")
	}
	return runs, nil
}

// Close closes the database handle
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func decodeRun(data string) (*model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, goerr.Wrap(err, "failed to decode run")
	}
	return &run, nil
}

var _ interfaces.RunRepository = (*SQLite)(nil) // Compile-time interface check
