package engine

import (
	"slices"
	"sync"
)

// fileLocks provides per-file mutual exclusion between running tasks.
// Each normalized path gets its own mutex, so tasks on different files run
// concurrently while tasks sharing a file take turns.
type fileLocks struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-file mutexes
}

func newFileLocks() *fileLocks {
	return &fileLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *fileLocks) get(path string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[path]
	if !ok {
		m = &sync.Mutex{}
		l.locks[path] = m
	}
	return m
}

// lockAll acquires every path in lexicographic order, which rules out
// deadlock between tasks with overlapping sets. It returns the release func.
func (l *fileLocks) lockAll(paths []string) (unlock func()) {
	if len(paths) == 0 {
		return func() {}
	}

	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, p := range sorted {
		m := l.get(p)
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
