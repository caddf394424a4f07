package backend

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// argBuilder turns a prompt into CLI arguments. resume is true when the call
// continues the adapter's current session.
type argBuilder func(prompt string, resume bool) []string

// cliAdapter holds what every subprocess-per-invocation agent CLI shares:
// binary resolution, working directory, session bookkeeping and output
// streaming. Concrete adapters only decide the argument layout.
type cliAdapter struct {
	name      string
	command   string
	workDir   string
	extraArgs []string
	parallel  bool
	procMgr   *ProcessManager
	detector  RateLimitDetector

	sessionID string
	started   bool
}

func newCLIAdapter(name, defaultCommand string, cfg Config, procMgr *ProcessManager, parallel bool) (cliAdapter, error) {
	command := cfg.Command
	if command == "" {
		command = defaultCommand
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return cliAdapter{}, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	return cliAdapter{
		name:      name,
		command:   command,
		workDir:   workDir,
		extraArgs: append([]string(nil), cfg.Args...),
		parallel:  parallel,
		procMgr:   procMgr,
		detector:  NewRateLimitDetector(cfg.RetryableStatusCodes),
	}, nil
}

// run executes one agent invocation. A fresh call rotates the session so the
// agent starts without memory of earlier calls.
func (a *cliAdapter) run(ctx context.Context, prompt, subagent string, onLine func(string), fresh bool, build argBuilder) (bool, string, error) {
	if fresh || a.sessionID == "" {
		a.sessionID = uuid.NewString()
		a.started = false
	}

	args := build(withSubagent(prompt, subagent), a.started)
	args = append(args, a.extraArgs...)

	cmd := newCommand(ctx, a.command, args...)
	cmd.Dir = a.workDir

	res, err := streamCommand(ctx, cmd, a.procMgr, onLine)
	if err != nil {
		return false, res.output, fmt.Errorf("%s command failed: %w", a.name, err)
	}

	a.started = true
	return res.exitCode == 0, res.output, nil
}

// withSubagent asks the agent to delegate to a named subagent.
func withSubagent(prompt, subagent string) string {
	if subagent == "" {
		return prompt
	}
	return fmt.Sprintf("Use the %s subagent for this task.\n\n%s", subagent, prompt)
}

func (a *cliAdapter) DetectRateLimit(output string) bool {
	return a.detector.Detect(output)
}

func (a *cliAdapter) SupportsParallel() bool {
	return a.parallel
}

func (a *cliAdapter) Name() string {
	return a.name
}

// SessionID returns the current session identifier, empty before the first call.
func (a *cliAdapter) SessionID() string {
	return a.sessionID
}

// Close is a no-op (subprocess-per-invocation model).
func (a *cliAdapter) Close() error {
	return nil
}
