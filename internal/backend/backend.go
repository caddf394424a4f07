package backend

import (
	"context"
	"fmt"
)

// ExecutionBackend is the contract between the task engine and an AI coding
// agent CLI. An instance holds session state and must not be shared by
// concurrent callers; use one instance per worker.
type ExecutionBackend interface {
	// RunWithCallback runs prompt through the agent, delivering each output line
	// to onLine as it arrives. success reports whether the agent finished the
	// task; err is reserved for failures to run the agent at all.
	// freshSession starts a new conversation with no memory of earlier calls.
	RunWithCallback(ctx context.Context, prompt, subagent string, onLine func(string), freshSession bool) (success bool, output string, err error)

	// DetectRateLimit reports whether output indicates a transient rate-limit
	// or gateway failure.
	DetectRateLimit(output string) bool

	// SupportsParallel reports whether several instances may run at once.
	SupportsParallel() bool

	// Name returns the backend type, e.g. "claude".
	Name() string

	// Close releases the instance.
	Close() error
}

// Factory creates a fresh backend instance.
type Factory func() (ExecutionBackend, error)

// New creates a new backend based on the provided configuration.
// This factory function switches on cfg.Type and returns the appropriate adapter.
func New(cfg Config, pm *ProcessManager) (ExecutionBackend, error) {
	switch cfg.Type {
	case "claude":
		return NewClaudeAdapter(cfg, pm)
	case "auggie":
		return NewAuggieAdapter(cfg, pm)
	case "cursor":
		return NewCursorAdapter(cfg, pm)
	case "codex":
		return NewCodexAdapter(cfg, pm)
	case "goose":
		return NewGooseAdapter(cfg, pm)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}

// NewFactory validates cfg once and returns a Factory producing independent
// instances of the selected backend.
func NewFactory(cfg Config, pm *ProcessManager) (Factory, error) {
	first, err := New(cfg, pm)
	if err != nil {
		return nil, err
	}
	first.Close()

	return func() (ExecutionBackend, error) {
		return New(cfg, pm)
	}, nil
}
