package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Basic health check + apply a few safe pragmas.
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
  id            TEXT PRIMARY KEY,
  task          TEXT NOT NULL,
  input_path    TEXT NOT NULL,
  output_path   TEXT NOT NULL,
  params        JSON NOT NULL DEFAULT '{}',
  status        TEXT NOT NULL,
  submitted_by  TEXT NOT NULL,
  created_at    TEXT NOT NULL,
  enqueued_at   TEXT NOT NULL,
  started_at    TEXT,
  ended_at      TEXT,
  result        JSON,
  error_kind    TEXT,
  error_message TEXT
);`,
		`CREATE TABLE IF NOT EXISTS job_log (
  id            TEXT PRIMARY KEY,
  task          TEXT NOT NULL,
  status        TEXT NOT NULL,
  submitted_by  TEXT NOT NULL,
  created_at    TEXT NOT NULL,
  ended_at      TEXT NOT NULL,
  error_kind    TEXT,
  error_message TEXT,
  stderr        TEXT
);`,
		`CREATE INDEX IF NOT EXISTS jobs_status_enqueued_at_idx ON jobs(status, enqueued_at);`,
		`CREATE INDEX IF NOT EXISTS jobs_task_status_idx ON jobs(task, status);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
