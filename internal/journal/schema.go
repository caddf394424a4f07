package journal

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		task_list TEXT NOT NULL,
		backend_type TEXT NOT NULL,
		status TEXT NOT NULL,
		failed INTEGER NOT NULL DEFAULT 0,
		aborted_early INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS outcomes (
		run_id TEXT NOT NULL,
		task_index INTEGER NOT NULL,
		task_name TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, task_index),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS output_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		task_index INTEGER NOT NULL,
		line TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_output_lines_run_task
		ON output_lines(run_id, task_index, id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
