package events

import (
	"time"
)

// Kind identifies what a TaskEvent describes.
type Kind int

// Event kinds
const (
	KindStarted Kind = iota
	KindOutput
	KindFinished
	KindRunFinished
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case KindStarted:
		return "task.started"
	case KindOutput:
		return "task.output"
	case KindFinished:
		return "task.finished"
	case KindRunFinished:
		return "run.finished"
	default:
		return "unknown"
	}
}

// Status is the terminal status carried by a Finished event.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailed
	StatusSkipped
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// TaskEvent is an immutable record of one step of a run.
type TaskEvent struct {
	Kind      Kind
	TaskIndex int // Position of the task in the run; -1 for RunFinished
	TaskName  string
	Timestamp time.Time

	// Output payload
	Line string

	// Finished payload
	Status   Status
	Duration time.Duration
	Attempts int
	Err      error

	// RunFinished payload
	Failed       []string
	AbortedEarly bool
}

// Started is published when a task begins execution.
func Started(index int, name string) TaskEvent {
	return TaskEvent{Kind: KindStarted, TaskIndex: index, TaskName: name, Timestamp: time.Now()}
}

// Output is published for each line a task's agent produces.
func Output(index int, name, line string) TaskEvent {
	return TaskEvent{Kind: KindOutput, TaskIndex: index, TaskName: name, Line: line, Timestamp: time.Now()}
}

// Finished is published exactly once per task in a run.
func Finished(index int, name string, status Status, duration time.Duration, attempts int, err error) TaskEvent {
	return TaskEvent{
		Kind:      KindFinished,
		TaskIndex: index,
		TaskName:  name,
		Status:    status,
		Duration:  duration,
		Attempts:  attempts,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// RunFinished is the last event of a run.
func RunFinished(failed []string, abortedEarly bool) TaskEvent {
	return TaskEvent{
		Kind:         KindRunFinished,
		TaskIndex:    -1,
		Failed:       append([]string(nil), failed...),
		AbortedEarly: abortedEarly,
		Timestamp:    time.Now(),
	}
}
