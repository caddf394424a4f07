package engine

import (
	"fmt"
	"sync"

	"github.com/aristath/taskflow/internal/tasklist"
)

// CompletionSink persists completion marks. *tasklist.File implements it.
type CompletionSink interface {
	MarkComplete(name string) (bool, error)
}

// SharedRunState is the only task state shared between workers. Every
// mutation goes through its mutex, so sequential and parallel completions
// never interleave writes to the document.
type SharedRunState struct {
	mu        sync.Mutex
	tasks     []tasklist.Task
	index     map[string]int
	sink      CompletionSink
	completed []string
}

// NewSharedRunState copies tasks. sink may be nil for in-memory runs.
func NewSharedRunState(tasks []tasklist.Task, sink CompletionSink) *SharedRunState {
	s := &SharedRunState{
		tasks: make([]tasklist.Task, len(tasks)),
		index: make(map[string]int, len(tasks)),
		sink:  sink,
	}
	for i, t := range tasks {
		s.tasks[i] = t.Clone()
		if _, dup := s.index[t.Name]; !dup {
			s.index[t.Name] = i
		}
	}
	return s
}

// MarkComplete records name as complete and persists the mark. It returns
// false when the task is unknown or already complete; the document is only
// written when the in-memory status changes.
func (s *SharedRunState) MarkComplete(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[name]
	if !ok || s.tasks[i].Status == tasklist.StatusComplete {
		return false, nil
	}

	if s.sink != nil {
		if _, err := s.sink.MarkComplete(name); err != nil {
			return false, fmt.Errorf("failed to persist completion of %q: %w", name, err)
		}
	}

	s.tasks[i].Status = tasklist.StatusComplete
	s.completed = append(s.completed, name)
	return true, nil
}

func (s *SharedRunState) markSkipped(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[name]; ok && s.tasks[i].Status == tasklist.StatusPending {
		s.tasks[i].Status = tasklist.StatusSkipped
	}
}

// Completed returns the names completed during this run, in completion order.
func (s *SharedRunState) Completed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.completed...)
}

// Tasks returns a snapshot of every task.
func (s *SharedRunState) Tasks() []tasklist.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]tasklist.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Status returns the current status of name.
func (s *SharedRunState) Status(name string) (tasklist.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[name]
	if !ok {
		return tasklist.StatusPending, false
	}
	return s.tasks[i].Status, true
}
