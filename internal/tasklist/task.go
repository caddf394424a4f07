package tasklist

// Category determines which scheduling phase a task runs in.
type Category int

const (
	Fundamental Category = iota // Runs sequentially, in dependency order
	Independent                 // Parallel-safe when file scopes don't collide
)

// String returns the metadata spelling of the category.
func (c Category) String() string {
	switch c {
	case Independent:
		return "independent"
	default:
		return "fundamental"
	}
}

// Status represents the completion state of a task.
type Status int

const (
	StatusPending  Status = iota // Unchecked in the document
	StatusComplete               // Checked in the document
	StatusSkipped                // Not executed in this run
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusSkipped:
		return "skipped"
	default:
		return "pending"
	}
}

// Task represents one checklist item of a task-list document.
type Task struct {
	Name            string   // Identity key within a list
	Category        Category // Scheduling phase
	DependencyOrder int      // Fundamental only; 0 means unordered
	GroupID         string   // Informational grouping for Independent tasks
	TargetFiles     []string // Repository-relative paths the task is expected to touch
	Status          Status
	Line            int // 1-based line number in the source document
}

// HasExplicitOrder reports whether the task declares a dependency position.
func (t Task) HasExplicitOrder() bool {
	return t.DependencyOrder > 0
}

// Clone returns a copy that shares no slices with t.
func (t Task) Clone() Task {
	cp := t
	if t.TargetFiles != nil {
		cp.TargetFiles = append([]string(nil), t.TargetFiles...)
	}
	return cp
}
