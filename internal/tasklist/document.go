package tasklist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MarkComplete rewrites the first unchecked item named name from "[ ]" to
// "[x]". Every other byte of doc is preserved. It returns false, with doc
// unchanged, when no unchecked item has that name.
func MarkComplete(doc, name string) (string, bool) {
	lines := strings.SplitAfter(doc, "\n")

	for i, raw := range lines {
		body := strings.TrimRight(raw, "\r\n")
		m := checklistPattern.FindStringSubmatchIndex(body)
		if m == nil {
			continue
		}

		box := body[m[2]:m[3]]
		if box != " " {
			continue
		}
		if strings.TrimSpace(body[m[4]:m[5]]) != name {
			continue
		}

		lines[i] = raw[:m[2]] + "x" + raw[m[3]:]
		return strings.Join(lines, ""), true
	}

	return doc, false
}

// File is a task-list document on disk. Its methods are safe for concurrent use.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a File for the document at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the document path.
func (f *File) Path() string {
	return f.path
}

// Load reads and parses the document.
func (f *File) Load() ([]Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading task list %s: %w", f.path, err)
	}
	return Parse(string(data)), nil
}

// MarkComplete checks off the named task in the document. It returns false
// when the task is not found unchecked, in which case the file is untouched.
func (f *File) MarkComplete(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return false, fmt.Errorf("reading task list %s: %w", f.path, err)
	}

	updated, ok := MarkComplete(string(data), name)
	if !ok {
		return false, nil
	}

	if err := writeAtomic(f.path, []byte(updated)); err != nil {
		return false, fmt.Errorf("writing task list %s: %w", f.path, err)
	}
	return true, nil
}

// writeAtomic replaces path with data via a temp file rename so readers never
// observe a partially written document.
func writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
