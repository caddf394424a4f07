package backend

import "context"

// AuggieAdapter drives the Augment Code CLI. Every call is a one-shot print
// invocation; correction prompts carry the prior output themselves.
type AuggieAdapter struct {
	cliAdapter
	model string
}

// NewAuggieAdapter creates a new Auggie backend adapter.
func NewAuggieAdapter(cfg Config, procMgr *ProcessManager) (*AuggieAdapter, error) {
	base, err := newCLIAdapter("auggie", "auggie", cfg, procMgr, true)
	if err != nil {
		return nil, err
	}
	return &AuggieAdapter{cliAdapter: base, model: cfg.Model}, nil
}

// RunWithCallback implements ExecutionBackend.
func (a *AuggieAdapter) RunWithCallback(ctx context.Context, prompt, subagent string, onLine func(string), freshSession bool) (bool, string, error) {
	return a.run(ctx, prompt, subagent, onLine, freshSession, a.buildArgs)
}

func (a *AuggieAdapter) buildArgs(prompt string, _ bool) []string {
	args := []string{"--print", prompt}
	if a.model != "" {
		args = append(args, "--model", a.model)
	}
	return args
}
