package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// queryTimeout bounds every journal statement.
const queryTimeout = 5 * time.Second

// BeginRun inserts a running run and returns its ID.
func (s *SQLiteStore) BeginRun(ctx context.Context, taskList, backendType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, task_list, backend_type, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, taskList, backendType, RunRunning, formatTime(s.now()))
	if err != nil {
		return "", fmt.Errorf("failed to begin run: %w", err)
	}
	return id, nil
}

// RecordOutcome stores a task outcome. Recording the same task twice keeps
// the latest outcome.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, o Outcome) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, task_index, task_name, status, attempts, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, task_index) DO UPDATE SET
			task_name = excluded.task_name,
			status = excluded.status,
			attempts = excluded.attempts,
			duration_ms = excluded.duration_ms,
			error = excluded.error
	`, o.RunID, o.TaskIndex, o.TaskName, o.Status, o.Attempts, o.Duration.Milliseconds(), o.Error)
	if err != nil {
		return fmt.Errorf("failed to record outcome for %q: %w", o.TaskName, err)
	}
	return nil
}

// AppendOutput stores one agent output line. Lines are append-only.
func (s *SQLiteStore) AppendOutput(ctx context.Context, runID string, taskIndex int, line string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO output_lines (run_id, task_index, line)
		VALUES (?, ?, ?)
	`, runID, taskIndex, line)
	if err != nil {
		return fmt.Errorf("failed to append output: %w", err)
	}
	return nil
}

// FinishRun marks a run finished.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, failed []string, abortedEarly bool) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	status := RunSucceeded
	if len(failed) > 0 || abortedEarly {
		status = RunFailed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, failed = ?, aborted_early = ?, finished_at = ?
		WHERE id = ?
	`, status, len(failed), abortedEarly, formatTime(s.now()), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %q not found: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_list, backend_type, status, failed, aborted_early, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.TaskList, &r.Backend, &r.Status, &r.Failed, &r.AbortedEarly, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("failed to parse started_at of run %s: %w", r.ID, err)
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("failed to parse finished_at of run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Outcomes returns the outcomes of a run ordered by task index.
func (s *SQLiteStore) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT task_index, task_name, status, attempts, duration_ms, error
		FROM outcomes
		WHERE run_id = ?
		ORDER BY task_index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []Outcome{}
	for rows.Next() {
		o := Outcome{RunID: runID}
		var ms int64
		if err := rows.Scan(&o.TaskIndex, &o.TaskName, &o.Status, &o.Attempts, &ms, &o.Error); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Duration = time.Duration(ms) * time.Millisecond
		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}
	return outcomes, nil
}

// Output returns the stored output lines of one task in arrival order.
func (s *SQLiteStore) Output(ctx context.Context, runID string, taskIndex int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT line
		FROM output_lines
		WHERE run_id = ? AND task_index = ?
		ORDER BY id ASC
	`, runID, taskIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to query output: %w", err)
	}
	defer rows.Close()

	lines := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("failed to scan output line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating output: %w", err)
	}
	return lines, nil
}
