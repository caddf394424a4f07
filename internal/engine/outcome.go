package engine

import (
	"time"

	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/tasklist"
)

// ExecutionOutcome is the result of one task in a run.
type ExecutionOutcome struct {
	TaskName string
	Index    int
	Status   events.Status
	Duration time.Duration
	Err      error
	Attempts int // 1 + corrections performed; 0 when the backend was never invoked
}

// Report summarizes a run for the calling workflow.
type Report struct {
	Outcomes     []ExecutionOutcome // Ordered by task index
	Failed       []string           // Failed task names, by task index
	Warnings     []tasklist.CollisionWarning
	AbortedEarly bool // Fail-fast stopped the run before every task started
	Parallel     bool // Independent tasks ran on the worker pool
}

// Succeeded reports whether no task failed.
func (r *Report) Succeeded() bool {
	return len(r.Failed) == 0
}

// Count returns how many outcomes have status.
func (r *Report) Count(status events.Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}
