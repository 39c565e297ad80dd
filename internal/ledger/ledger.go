// Package ledger keeps a local SQLite history of relocation runs. It is
// used to list past verdicts and to refuse a marker that an earlier run
// already pushed into some cache.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/remcomokveld/dagger/internal/errors"
)

// Ledger wraps the SQLite database.
type Ledger struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// Run is one recorded relocation run.
type Run struct {
	ID              string    `json:"id"`
	Scenario        string    `json:"scenario"`
	PipelineVersion string    `json:"pipeline_version"`
	Marker          string    `json:"marker"`
	Passed          bool      `json:"passed"`
	ErrorCode       string    `json:"error_code,omitempty"`
	ExpectedCount   int       `json:"expected_count"`
	FromCacheCount  int       `json:"from_cache_count"`
	Missing         []string  `json:"missing,omitempty"`
	Unexpected      []string  `json:"unexpected,omitempty"`
	EvidenceRef     string    `json:"evidence_ref,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// DefaultPath returns $XDG_DATA_HOME/relocheck/ledger.db.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "relocheck", "ledger.db")
}

// Open opens the ledger at path, creating parent directories and applying
// migrations.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, ledgerError("create ledger directory", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ledgerError("open ledger", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, ledgerError(pragma, err)
		}
	}

	l := &Ledger{conn: conn, path: path}
	if err := l.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.Close()
}

// Path returns the database file.
func (l *Ledger) Path() string {
	return l.path
}

func (l *Ledger) migrate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return ledgerError("create schema_version table", err)
	}

	var current int
	if err := l.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return ledgerError("get schema version", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Runs},
		{2, migrationV2RunDiffs},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := l.conn.Begin()
		if err != nil {
			return ledgerError("begin transaction", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return ledgerError(fmt.Sprintf("apply migration v%d", m.version), err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return ledgerError(fmt.Sprintf("record migration v%d", m.version), err)
		}
		if err := tx.Commit(); err != nil {
			return ledgerError(fmt.Sprintf("commit migration v%d", m.version), err)
		}
	}
	return nil
}

const migrationV1Runs = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	scenario TEXT NOT NULL,
	pipeline_version TEXT NOT NULL,
	marker TEXT NOT NULL,
	passed INTEGER NOT NULL,
	error_code TEXT,
	expected_count INTEGER NOT NULL DEFAULT 0,
	from_cache_count INTEGER NOT NULL DEFAULT 0,
	evidence_ref TEXT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_marker ON runs(marker);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

const migrationV2RunDiffs = `
CREATE TABLE IF NOT EXISTS run_diffs (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	task_id TEXT NOT NULL,
	kind TEXT NOT NULL CHECK (kind IN ('missing', 'unexpected')),
	PRIMARY KEY (run_id, task_id, kind)
);
`

// Record stores a run and its task differences in one transaction.
func (l *Ledger) Record(ctx context.Context, run Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.conn.BeginTx(ctx, nil)
	if err != nil {
		return ledgerError("begin transaction", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, pipeline_version, marker, passed, error_code,
			expected_count, from_cache_count, evidence_ref, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, run.PipelineVersion, run.Marker, run.Passed, nullable(run.ErrorCode),
		run.ExpectedCount, run.FromCacheCount, nullable(run.EvidenceRef),
		formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		tx.Rollback()
		return ledgerError("insert run", err)
	}

	for kind, ids := range map[string][]string{"missing": run.Missing, "unexpected": run.Unexpected} {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO run_diffs (run_id, task_id, kind) VALUES (?, ?, ?)", run.ID, id, kind); err != nil {
				tx.Rollback()
				return ledgerError("insert run diff", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return ledgerError("commit run", err)
	}
	return nil
}

// MarkerSeen reports whether any recorded run used marker.
func (l *Ledger) MarkerSeen(ctx context.Context, marker string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var n int
	if err := l.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE marker = ?", marker).Scan(&n); err != nil {
		return false, ledgerError("query marker", err)
	}
	return n > 0, nil
}

// List returns up to limit runs, newest first. A limit of zero or less returns all runs.
func (l *Ledger) List(ctx context.Context, limit int) ([]Run, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	query := `SELECT id, scenario, pipeline_version, marker, passed, error_code,
		expected_count, from_cache_count, evidence_ref, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledgerError("list runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerError("list runs", err)
	}
	rows.Close()

	for i := range runs {
		if err := l.loadDiffs(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// Get returns the run with the given id.
func (l *Ledger) Get(ctx context.Context, id string) (*Run, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	row := l.conn.QueryRowContext(ctx, `SELECT id, scenario, pipeline_version, marker, passed, error_code,
		expected_count, from_cache_count, evidence_ref, started_at, finished_at
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	if err := l.loadDiffs(ctx, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run                   Run
		errorCode, evidence   sql.NullString
		startedAt, finishedAt string
	)
	err := s.Scan(&run.ID, &run.Scenario, &run.PipelineVersion, &run.Marker, &run.Passed, &errorCode,
		&run.ExpectedCount, &run.FromCacheCount, &evidence, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return Run{}, errors.New(errors.ErrCodeLedger, "run not found")
	}
	if err != nil {
		return Run{}, ledgerError("scan run", err)
	}
	run.ErrorCode = errorCode.String
	run.EvidenceRef = evidence.String
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, ledgerError("parse started_at", err)
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return Run{}, ledgerError("parse finished_at", err)
	}
	return run, nil
}

func (l *Ledger) loadDiffs(ctx context.Context, run *Run) error {
	rows, err := l.conn.QueryContext(ctx,
		"SELECT task_id, kind FROM run_diffs WHERE run_id = ? ORDER BY task_id", run.ID)
	if err != nil {
		return ledgerError("load run diffs", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, kind string
		if err := rows.Scan(&taskID, &kind); err != nil {
			return ledgerError("scan run diff", err)
		}
		if kind == "missing" {
			run.Missing = append(run.Missing, taskID)
		} else {
			run.Unexpected = append(run.Unexpected, taskID)
		}
	}
	return rows.Err()
}

func ledgerError(op string, err error) error {
	return errors.Wrap(errors.ErrCodeLedger, "ledger: "+op, err).
		WithSuggestion("Set ledger.enabled to false to run without history")
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
