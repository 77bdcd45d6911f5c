// Package store persists pipeline runs in SQLite and computes drift between
// runs of the same page.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/raysh454/tagscope/internal/logging"
	"github.com/raysh454/tagscope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	scan_id        TEXT NOT NULL,
	url            TEXT NOT NULL,
	environment    TEXT NOT NULL DEFAULT '',
	score          INTEGER NOT NULL DEFAULT 0,
	is_valid       INTEGER NOT NULL DEFAULT 0,
	tag_count      INTEGER NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL,
	detection_json TEXT,
	report_json    TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_url ON runs(url, created_at);
`

// SQLiteStore is a RunStore backed by a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewSQLiteStore opens (creating if necessary) the database at cfg.Path and
// ensures the schema exists.
func NewSQLiteStore(cfg *Config, logger logging.Logger) (*SQLiteStore, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("RunStore")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// The driver serializes access per connection; a single connection avoids
	// SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With(logging.Field{Key: "component", Value: "RunStore"}),
	}, nil
}

// SaveRun stores a completed run.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	if run == nil {
		return fmt.Errorf("run is nil")
	}
	if run.ID == "" {
		return fmt.Errorf("run has no id")
	}

	var detectionJSON, reportJSON []byte
	var err error
	if run.Detection != nil {
		if detectionJSON, err = json.Marshal(run.Detection); err != nil {
			return fmt.Errorf("encoding detection: %w", err)
		}
	}
	if run.Report != nil {
		if reportJSON, err = json.Marshal(run.Report); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, scan_id, url, environment, score, is_valid, tag_count, created_at, detection_json, report_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ScanID, run.URL, run.Environment, run.Score,
		boolToInt(run.IsValid), run.TagCount, run.CreatedAt.UnixMilli(),
		nullableString(detectionJSON), nullableString(reportJSON))
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	s.logger.Debug("saved run",
		logging.Field{Key: "runId", Value: run.ID},
		logging.Field{Key: "url", Value: run.URL})
	return nil
}

// GetRun returns the run with the given id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, scan_id, url, environment, score, is_valid, tag_count, created_at, detection_json, report_json
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	query := `SELECT id, scan_id, url, environment, score, is_valid, tag_count, created_at, detection_json, report_json
		 FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// RunsForURL returns all runs recorded for the given page URL, newest first.
func (s *SQLiteStore) RunsForURL(ctx context.Context, url string) ([]*model.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scan_id, url, environment, score, is_valid, tag_count, created_at, detection_json, report_json
		 FROM runs WHERE url = ? ORDER BY created_at DESC, id`, url)
	if err != nil {
		return nil, fmt.Errorf("listing runs for url: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var run model.Run
	var isValid int
	var createdAt int64
	var detectionJSON, reportJSON sql.NullString
	err := row.Scan(&run.ID, &run.ScanID, &run.URL, &run.Environment,
		&run.Score, &isValid, &run.TagCount, &createdAt,
		&detectionJSON, &reportJSON)
	if err != nil {
		return nil, err
	}
	run.IsValid = isValid != 0
	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	if detectionJSON.Valid && detectionJSON.String != "" {
		run.Detection = &model.TagDetectionResult{}
		if err := json.Unmarshal([]byte(detectionJSON.String), run.Detection); err != nil {
			return nil, fmt.Errorf("decoding detection: %w", err)
		}
	}
	if reportJSON.Valid && reportJSON.String != "" {
		run.Report = &model.ValidationReport{}
		if err := json.Unmarshal([]byte(reportJSON.String), run.Report); err != nil {
			return nil, fmt.Errorf("decoding report: %w", err)
		}
	}
	return &run, nil
}

func collectRuns(rows *sql.Rows) ([]*model.Run, error) {
	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("reading run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
