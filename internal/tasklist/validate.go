package tasklist

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ScopePolicy decides how an Independent task without target files is treated.
type ScopePolicy int

const (
	// ScopeStrict rejects Independent tasks that declare no target files.
	ScopeStrict ScopePolicy = iota
	// ScopeWarn reports them as warnings and lets the run proceed.
	ScopeWarn
)

// WarningKind classifies a validation warning.
type WarningKind int

const (
	WarnCollision WarningKind = iota // A file is claimed by more than one task
	WarnUnscoped                     // An Independent task declares no files (ScopeWarn only)
)

// CollisionWarning is a non-fatal finding from ValidateDisjoint.
type CollisionWarning struct {
	Kind  WarningKind
	File  string   // Normalized repository-relative path; empty for WarnUnscoped
	Tasks []string // Task names in document order
}

func (w CollisionWarning) String() string {
	if w.Kind == WarnUnscoped {
		return fmt.Sprintf("task %q declares no target files", strings.Join(w.Tasks, ", "))
	}
	return fmt.Sprintf("file %s is claimed by tasks: %s", w.File, strings.Join(w.Tasks, ", "))
}

// PathEscapeError reports a target file that resolves outside the repository root.
type PathEscapeError struct {
	Task string
	Path string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("task %q: target file %q escapes the repository root", e.Task, e.Path)
}

// RootPathError reports a target file that names the repository root itself.
type RootPathError struct {
	Task string
	Path string
}

func (e *RootPathError) Error() string {
	return fmt.Sprintf("task %q: target %q is the repository root; list the files the task touches", e.Task, e.Path)
}

// UnscopedTaskError reports an Independent task without target files under ScopeStrict.
type UnscopedTaskError struct {
	Task string
}

func (e *UnscopedTaskError) Error() string {
	return fmt.Sprintf("independent task %q declares no target files; it cannot be proven safe to run in parallel", e.Task)
}

// NormalizePath resolves p against repoRoot and returns the cleaned,
// slash-separated path relative to the root. Paths that resolve outside the
// root return ok == false. The root itself also returns ok == false, with
// rel set to ".".
func NormalizePath(repoRoot, p string) (rel string, ok bool, err error) {
	root, err := filepath.Abs(repoRoot)
	if err != nil {
		return "", false, fmt.Errorf("resolving repository root: %w", err)
	}

	abs := filepath.FromSlash(p)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	}
	abs = filepath.Clean(abs)

	rel, err = filepath.Rel(root, abs)
	if err != nil {
		return "", false, nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false, nil
	}
	if rel == "." {
		return rel, false, nil
	}

	return filepath.ToSlash(rel), true, nil
}

// NormalizeFiles normalizes and deduplicates a task's target files, preserving
// first-seen order.
func NormalizeFiles(repoRoot string, task Task) ([]string, error) {
	seen := make(map[string]bool, len(task.TargetFiles))
	out := make([]string, 0, len(task.TargetFiles))

	for _, f := range task.TargetFiles {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}

		rel, ok, err := NormalizePath(repoRoot, f)
		if err != nil {
			return nil, err
		}
		if !ok {
			if rel == "." {
				return nil, &RootPathError{Task: task.Name, Path: f}
			}
			return nil, &PathEscapeError{Task: task.Name, Path: f}
		}

		if !seen[rel] {
			seen[rel] = true
			out = append(out, rel)
		}
	}

	return out, nil
}

// ValidateDisjoint checks that the Independent tasks among tasks can run in the
// same parallel phase. Every file claimed by more than one task is reported as
// a warning. Paths escaping repoRoot are always an error; an Independent task
// with no target files is an error under ScopeStrict and a warning under ScopeWarn.
func ValidateDisjoint(tasks []Task, repoRoot string, policy ScopePolicy) ([]CollisionWarning, error) {
	var warnings []CollisionWarning
	claims := make(map[string][]string)

	for _, task := range tasks {
		if task.Category != Independent {
			continue
		}

		files, err := NormalizeFiles(repoRoot, task)
		if err != nil {
			return nil, err
		}

		if len(files) == 0 {
			if policy == ScopeStrict {
				return nil, &UnscopedTaskError{Task: task.Name}
			}
			warnings = append(warnings, CollisionWarning{
				Kind:  WarnUnscoped,
				Tasks: []string{task.Name},
			})
			continue
		}

		for _, f := range files {
			claims[f] = append(claims[f], task.Name)
		}
	}

	files := make([]string, 0, len(claims))
	for f, owners := range claims {
		if len(owners) > 1 {
			files = append(files, f)
		}
	}
	sort.Strings(files)

	for _, f := range files {
		warnings = append(warnings, CollisionWarning{
			Kind:  WarnCollision,
			File:  f,
			Tasks: claims[f],
		})
	}

	return warnings, nil
}
