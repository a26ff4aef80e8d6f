// Package ledger keeps the durable run history in SQLite. The per-run
// artifact trail lives on disk next to the run workspace; the ledger is the
// queryable index over it.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run id has no ledger row.
var ErrNotFound = errors.New("ledger: run not found")

// Run statuses, terminal except for "running".
const (
	StatusRunning    = "running"
	StatusRejected   = "rejected"
	StatusLintFailed = "lint_failed"
	StatusAborted    = "aborted"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Run is one ledger row.
type Run struct {
	RunID                string
	Template             string
	PackageID            string
	Mode                 string
	Status               string
	CriticalReplacements int
	Error                string
	StartedAt            time.Time
	FinishedAt           time.Time
}

// Ledger wraps the SQLite handle. database/sql serializes access; no extra
// locking is needed here.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open initializes the ledger database at the given path, creating the
// schema on first use.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}
	l := &Ledger{db: db, path: path}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		template TEXT NOT NULL,
		package_id TEXT,
		mode TEXT,
		status TEXT NOT NULL,
		critical_replacements INTEGER DEFAULT 0,
		error TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_runs_template ON runs(template);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("ledger: create schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (l *Ledger) Close() error { return l.db.Close() }

// Begin records a starting run. A replayed run id overwrites the previous
// attempt's row.
func (l *Ledger) Begin(r Run) error {
	_, err := l.db.Exec(`
		INSERT INTO runs (run_id, template, package_id, mode, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			template = excluded.template,
			package_id = excluded.package_id,
			mode = excluded.mode,
			status = excluded.status,
			critical_replacements = 0,
			error = NULL,
			started_at = excluded.started_at,
			finished_at = NULL`,
		r.RunID, r.Template, r.PackageID, r.Mode, StatusRunning, r.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("ledger: begin run: %w", err)
	}
	return nil
}

// Finish records a run's terminal state.
func (l *Ledger) Finish(runID, status string, criticalReplacements int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := l.db.Exec(`
		UPDATE runs SET status = ?, critical_replacements = ?, error = ?, finished_at = ?
		WHERE run_id = ?`,
		status, criticalReplacements, msg, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("ledger: finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

// Get loads one run by id.
func (l *Ledger) Get(runID string) (*Run, error) {
	row := l.db.QueryRow(`
		SELECT run_id, template, package_id, mode, status,
		       critical_replacements, COALESCE(error, ''),
		       started_at, COALESCE(finished_at, started_at)
		FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return r, err
}

// Recent lists the newest runs, most recent first.
func (l *Ledger) Recent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.Query(`
		SELECT run_id, template, package_id, mode, status,
		       critical_replacements, COALESCE(error, ''),
		       started_at, COALESCE(finished_at, started_at)
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	err := s.Scan(&r.RunID, &r.Template, &r.PackageID, &r.Mode, &r.Status,
		&r.CriticalReplacements, &r.Error, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
