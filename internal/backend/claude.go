package backend

import "context"

// ClaudeAdapter drives the Claude Code CLI in print mode.
type ClaudeAdapter struct {
	cliAdapter
	model        string
	systemPrompt string
}

// NewClaudeAdapter creates a new Claude Code backend adapter.
// The ProcessManager is optional - if nil, subprocesses won't be tracked.
func NewClaudeAdapter(cfg Config, procMgr *ProcessManager) (*ClaudeAdapter, error) {
	base, err := newCLIAdapter("claude", "claude", cfg, procMgr, true)
	if err != nil {
		return nil, err
	}

	return &ClaudeAdapter{
		cliAdapter:   base,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
	}, nil
}

// RunWithCallback implements ExecutionBackend.
func (a *ClaudeAdapter) RunWithCallback(ctx context.Context, prompt, subagent string, onLine func(string), freshSession bool) (bool, string, error) {
	return a.run(ctx, prompt, subagent, onLine, freshSession, a.buildArgs)
}

// buildArgs constructs the command-line arguments for the claude CLI.
// The first call of a session uses --session-id, later calls use --resume.
func (a *ClaudeAdapter) buildArgs(prompt string, resume bool) []string {
	args := []string{"-p", prompt, "--output-format", "text"}

	if resume {
		args = append(args, "--resume", a.sessionID)
	} else {
		args = append(args, "--session-id", a.sessionID)
	}

	if a.model != "" {
		args = append(args, "--model", a.model)
	}
	if a.systemPrompt != "" {
		args = append(args, "--append-system-prompt", a.systemPrompt)
	}

	return args
}
