// Package history records per-target results of monorun runs in SQLite so
// repeated failures can be looked up after the terminal output is gone.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Step is one target's result within one phase of a run.
type Step struct {
	ID         int64
	RunID      string
	Command    string // format, lint
	Target     string
	Phase      string // check, fix
	Status     string // passed, failed, error
	ExitCode   int
	Duration   time.Duration
	RecordedAt time.Time
}

// Run groups the steps recorded under one run ID.
type Run struct {
	RunID     string
	Command   string
	StartedAt time.Time
	Steps     []Step
}

// Failed returns the number of steps that did not pass.
func (r Run) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status != "passed" {
			n++
		}
	}
	return n
}

// Store manages the SQLite database for run history
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new Store instance and initializes the database
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// busy_timeout must be set first so the remaining pragmas wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordStep inserts one step. RecordedAt defaults to now.
func (s *Store) RecordStep(ctx context.Context, step Step) error {
	if step.RunID == "" {
		return fmt.Errorf("record step: run id is required")
	}
	recordedAt := step.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	query := `INSERT INTO steps
		(run_id, command, target, phase, status, exit_code, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		step.RunID, step.Command, step.Target, step.Phase, step.Status,
		step.ExitCode, step.Duration.Milliseconds(), recordedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first, each with its steps in
// recording order.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		return nil, nil
	}

	runQuery := `SELECT run_id, command, MIN(recorded_at) AS started
		FROM steps
		GROUP BY run_id
		ORDER BY started DESC, MIN(id) DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, runQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.RunID, &r.Command, &started); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = parseTimestamp(started)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		steps, err := s.stepsForRun(ctx, runs[i].RunID)
		if err != nil {
			return nil, err
		}
		runs[i].Steps = steps
	}

	return runs, nil
}

func (s *Store) stepsForRun(ctx context.Context, runID string) ([]Step, error) {
	query := `SELECT id, run_id, command, target, phase, status, exit_code, duration_ms, recorded_at
		FROM steps WHERE run_id = ? ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps for %s: %w", runID, err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var st Step
		var durationMS int64
		var recorded time.Time
		if err := rows.Scan(&st.ID, &st.RunID, &st.Command, &st.Target, &st.Phase,
			&st.Status, &st.ExitCode, &durationMS, &recorded); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st.Duration = time.Duration(durationMS) * time.Millisecond
		st.RecordedAt = recorded
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

// parseTimestamp reads the text form go-sqlite3 returns for aggregated
// TIMESTAMP columns, which lose their declared type.
func parseTimestamp(v string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
