package backend

import "context"

// CursorAdapter drives cursor-agent in print mode.
type CursorAdapter struct {
	cliAdapter
	model string
}

// NewCursorAdapter creates a new Cursor agent backend adapter.
func NewCursorAdapter(cfg Config, procMgr *ProcessManager) (*CursorAdapter, error) {
	base, err := newCLIAdapter("cursor", "cursor-agent", cfg, procMgr, true)
	if err != nil {
		return nil, err
	}
	return &CursorAdapter{cliAdapter: base, model: cfg.Model}, nil
}

// RunWithCallback implements ExecutionBackend.
func (a *CursorAdapter) RunWithCallback(ctx context.Context, prompt, subagent string, onLine func(string), freshSession bool) (bool, string, error) {
	return a.run(ctx, prompt, subagent, onLine, freshSession, a.buildArgs)
}

func (a *CursorAdapter) buildArgs(prompt string, _ bool) []string {
	args := []string{"-p", prompt, "--output-format", "text"}
	if a.model != "" {
		args = append(args, "--model", a.model)
	}
	return args
}
