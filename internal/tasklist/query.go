package tasklist

import (
	"fmt"
	"sort"
)

// DuplicateNameError is returned when two tasks share a name, which would make
// completion marks ambiguous.
type DuplicateNameError struct {
	Name  string
	Lines []int
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate task name %q on lines %v", e.Name, e.Lines)
}

// PendingFundamental returns the pending Fundamental tasks in execution order:
// explicitly ordered tasks first by DependencyOrder, then unordered tasks; ties
// break by source line.
func PendingFundamental(tasks []Task) []Task {
	var out []Task
	for _, t := range tasks {
		if t.Status == StatusPending && t.Category == Fundamental {
			out = append(out, t.Clone())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.HasExplicitOrder() != b.HasExplicitOrder() {
			return a.HasExplicitOrder()
		}
		if a.DependencyOrder != b.DependencyOrder {
			return a.DependencyOrder < b.DependencyOrder
		}
		return a.Line < b.Line
	})

	return out
}

// PendingIndependent returns the pending Independent tasks in document order.
func PendingIndependent(tasks []Task) []Task {
	var out []Task
	for _, t := range tasks {
		if t.Status == StatusPending && t.Category == Independent {
			out = append(out, t.Clone())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Line < out[j].Line
	})

	return out
}

// Find returns the task with the given name.
func Find(tasks []Task, name string) (Task, bool) {
	for _, t := range tasks {
		if t.Name == name {
			return t.Clone(), true
		}
	}
	return Task{}, false
}

// ValidateNames returns a DuplicateNameError for the first name that appears
// more than once.
func ValidateNames(tasks []Task) error {
	lines := make(map[string][]int, len(tasks))
	var order []string
	for _, t := range tasks {
		if _, seen := lines[t.Name]; !seen {
			order = append(order, t.Name)
		}
		lines[t.Name] = append(lines[t.Name], t.Line)
	}

	for _, name := range order {
		if len(lines[name]) > 1 {
			return &DuplicateNameError{Name: name, Lines: lines[name]}
		}
	}
	return nil
}
