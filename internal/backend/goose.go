package backend

import (
	"context"
	"strings"
)

// GooseAdapter drives the Goose CLI.
// Goose supports local LLM providers (Ollama, LM Studio, llama.cpp) via
// --provider and --model. Its session store is not safe for concurrent
// runs, so it never runs in parallel.
type GooseAdapter struct {
	cliAdapter
	model        string
	provider     string
	systemPrompt string
}

// NewGooseAdapter creates a new Goose adapter.
func NewGooseAdapter(cfg Config, procMgr *ProcessManager) (*GooseAdapter, error) {
	base, err := newCLIAdapter("goose", "goose", cfg, procMgr, false)
	if err != nil {
		return nil, err
	}

	return &GooseAdapter{
		cliAdapter:   base,
		model:        cfg.Model,
		provider:     cfg.Provider,
		systemPrompt: cfg.SystemPrompt,
	}, nil
}

// RunWithCallback implements ExecutionBackend.
func (g *GooseAdapter) RunWithCallback(ctx context.Context, prompt, subagent string, onLine func(string), freshSession bool) (bool, string, error) {
	return g.run(ctx, prompt, subagent, onLine, freshSession, g.buildArgs)
}

// sessionName derives a goose session name from the current session id.
func (g *GooseAdapter) sessionName() string {
	id, _, _ := strings.Cut(g.sessionID, "-")
	return "taskflow-" + id
}

// buildArgs uses --name for the first message, --resume for subsequent ones.
func (g *GooseAdapter) buildArgs(prompt string, resume bool) []string {
	args := []string{"run", "--text", prompt, "--name", g.sessionName()}
	if resume {
		args = append(args, "--resume")
	}

	if g.provider != "" {
		args = append(args, "--provider", g.provider)
	}
	if g.model != "" {
		args = append(args, "--model", g.model)
	}
	if g.systemPrompt != "" {
		args = append(args, "--system", g.systemPrompt)
	}

	return args
}
