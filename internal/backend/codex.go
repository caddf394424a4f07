package backend

import "context"

// CodexAdapter drives the OpenAI Codex CLI through "codex exec".
// Codex prints its own session ids, which cannot be pinned up front, so
// every call is a new exec.
type CodexAdapter struct {
	cliAdapter
	model string
}

// NewCodexAdapter creates a new Codex backend adapter.
func NewCodexAdapter(cfg Config, procMgr *ProcessManager) (*CodexAdapter, error) {
	base, err := newCLIAdapter("codex", "codex", cfg, procMgr, true)
	if err != nil {
		return nil, err
	}
	return &CodexAdapter{cliAdapter: base, model: cfg.Model}, nil
}

// RunWithCallback implements ExecutionBackend.
func (a *CodexAdapter) RunWithCallback(ctx context.Context, prompt, subagent string, onLine func(string), freshSession bool) (bool, string, error) {
	return a.run(ctx, prompt, subagent, onLine, freshSession, a.buildArgs)
}

func (a *CodexAdapter) buildArgs(prompt string, _ bool) []string {
	args := []string{"exec"}
	if a.model != "" {
		args = append(args, "--model", a.model)
	}
	return append(args, prompt)
}
