// Package journal keeps a SQLite record of task-list runs: one row per run,
// one per task outcome, and the agent output lines of every task.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is one execution of a task list.
type Run struct {
	ID           string
	TaskList     string // Path of the task-list document
	Backend      string
	Status       string
	Failed       int
	AbortedEarly bool
	StartedAt    time.Time
	FinishedAt   time.Time // Zero while running
}

// Outcome is the terminal result of one task within a run.
type Outcome struct {
	RunID     string
	TaskIndex int
	TaskName  string
	Status    string
	Attempts  int
	Duration  time.Duration
	Error     string
}

// Store defines the persistence interface for run history.
type Store interface {
	BeginRun(ctx context.Context, taskList, backendType string) (string, error)
	RecordOutcome(ctx context.Context, o Outcome) error
	AppendOutput(ctx context.Context, runID string, taskIndex int, line string) error
	FinishRun(ctx context.Context, runID string, failed []string, abortedEarly bool) error

	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Outcomes(ctx context.Context, runID string) ([]Outcome, error)
	Output(ctx context.Context, runID string, taskIndex int) ([]string, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)", dbPath)
	return open(ctx, connStr)
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Every call gets its own database; connections of one store share it.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:journal-%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	return open(ctx, connStr)
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Pragmas travel in the DSN so every pooled connection gets them.
	// Output lines arrive one at a time from a single consumer; one writer
	// plus one reader is plenty.
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
