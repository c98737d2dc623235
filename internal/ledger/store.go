// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records runs and per-title outcomes in SQLite so that
// later runs can skip titles already acquired and report history.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/citefetch/pkg/types"
)

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one invocation of the pipeline.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Succeeded  int       `json:"succeeded" yaml:"succeeded"`
	Failed     int       `json:"failed" yaml:"failed"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
}

// Entry is the latest recorded outcome for a title.
type Entry struct {
	types.TitleOutcome `yaml:",inline"`
	RunID              string    `json:"run_id" yaml:"run_id"`
	UpdatedAt          time.Time `json:"updated_at" yaml:"updated_at"`
}

// Store manages the ledger database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the ledger database at path and its schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			succeeded INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS citations (
			title TEXT PRIMARY KEY,
			canonical_title TEXT,
			path TEXT,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			score REAL,
			error_kind TEXT,
			error TEXT,
			run_id TEXT REFERENCES runs(id),
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_citations_status ON citations(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// StartRun inserts a new run and returns it.
func (s *Store) StartRun(ctx context.Context) (Run, error) {
	run := Run{ID: uuid.NewString(), StartedAt: s.now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		run.ID, run.StartedAt.Format(timeLayout))
	if err != nil {
		return Run{}, fmt.Errorf("inserting run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final tallies of a run.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = s.now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, succeeded = ?, failed = ?, skipped = ? WHERE id = ?`,
		run.FinishedAt.Format(timeLayout), run.Succeeded, run.Failed, run.Skipped, run.ID)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// Runs returns the most recent runs first, at most limit (all when limit
// is zero or less).
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, started_at, COALESCE(finished_at, ''), succeeded, failed, skipped FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Succeeded, &r.Failed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeLayout, started)
		if finished != "" {
			r.FinishedAt, _ = time.Parse(timeLayout, finished)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Record upserts the outcome for o.Title under runID. Skipped outcomes
// leave the stored entry untouched.
func (s *Store) Record(ctx context.Context, runID string, o types.TitleOutcome) error {
	if o.Status == types.StatusSkipped {
		return nil
	}
	var canonical, path string
	if o.Record != nil {
		canonical, path = o.Record.CanonicalTitle, o.Record.Path
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO citations (title, canonical_title, path, status, attempts, score, error_kind, error, run_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(title) DO UPDATE SET
			canonical_title=excluded.canonical_title, path=excluded.path, status=excluded.status,
			attempts=excluded.attempts, score=excluded.score, error_kind=excluded.error_kind,
			error=excluded.error, run_id=excluded.run_id, updated_at=excluded.updated_at`,
		o.Title, canonical, path, string(o.Status), o.Attempts, o.Score,
		o.ErrorKind, o.Error, runID, s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("recording %q: %w", o.Title, err)
	}
	return nil
}

const entryColumns = `title, COALESCE(canonical_title, ''), COALESCE(path, ''), status, attempts,
	COALESCE(score, 0), COALESCE(error_kind, ''), COALESCE(error, ''), COALESCE(run_id, ''), updated_at`

// Lookup returns the stored entry for title.
func (s *Store) Lookup(ctx context.Context, title string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM citations WHERE title = ?`, title)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("looking up %q: %w", title, err)
	}
	return e, true, nil
}

// List returns entries ordered by title, optionally filtered by status.
func (s *Store) List(ctx context.Context, status types.TitleStatus) ([]Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM citations`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY title`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying citations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning citation: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var e Entry
	var canonical, path, status, updated string
	err := sc.Scan(&e.Title, &canonical, &path, &status, &e.Attempts, &e.Score,
		&e.ErrorKind, &e.Error, &e.RunID, &updated)
	if err != nil {
		return Entry{}, err
	}
	e.Status = types.TitleStatus(status)
	if path != "" {
		e.Record = &types.CitationRecord{Title: e.Title, CanonicalTitle: canonical, Path: path}
	}
	e.UpdatedAt, _ = time.Parse(timeLayout, updated)
	if e.Record != nil {
		e.Record.CreatedAt = e.UpdatedAt
	}
	return e, nil
}

// Recorder binds a Store to one run and satisfies the pipeline's ledger
// interface.
type Recorder struct {
	Store *Store
	RunID string
}

// Lookup returns the last outcome recorded for title in any run.
func (r Recorder) Lookup(ctx context.Context, title string) (types.TitleOutcome, bool, error) {
	e, ok, err := r.Store.Lookup(ctx, title)
	return e.TitleOutcome, ok, err
}

// Record stores o under the bound run.
func (r Recorder) Record(ctx context.Context, o types.TitleOutcome) error {
	return r.Store.Record(ctx, r.RunID, o)
}
