package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/taskflow/internal/retry"
	"github.com/aristath/taskflow/internal/tasklist"
)

// ErrTaskFailed is wrapped when a task still fails after every correction.
var ErrTaskFailed = errors.New("task reported failure")

// AttemptFunc runs one isolated attempt. attempt is 1-based. A non-nil error
// is terminal and ends the loop.
type AttemptFunc func(ctx context.Context, prompt string, attempt int) (retry.Result, error)

// CorrectionResult is the outcome of a correction loop.
type CorrectionResult struct {
	Success  bool
	Attempts int
	Output   string // Output of the last attempt
	Err      error
}

// Corrector folds a failed attempt's output into the next prompt, for at most
// MaxCorrections extra attempts.
type Corrector struct {
	MaxCorrections int
	Prompts        PromptBuilder
}

// Run attempts task until it succeeds, a terminal error occurs, or the
// corrections are used up.
func (c Corrector) Run(ctx context.Context, task tasklist.Task, attempt AttemptFunc) CorrectionResult {
	prompts := c.Prompts
	if prompts == nil {
		prompts = DefaultPrompts{}
	}

	prompt := prompts.TaskPrompt(task)
	for n := 1; ; n++ {
		res, err := attempt(ctx, prompt, n)
		if err != nil {
			return CorrectionResult{Attempts: n, Output: res.Output, Err: err}
		}
		if res.Success {
			return CorrectionResult{Success: true, Attempts: n, Output: res.Output}
		}

		if n > c.MaxCorrections {
			return CorrectionResult{
				Attempts: n,
				Output:   res.Output,
				Err:      fmt.Errorf("%w after %d attempt(s)", ErrTaskFailed, n),
			}
		}
		if err := ctx.Err(); err != nil {
			return CorrectionResult{Attempts: n, Output: res.Output, Err: err}
		}

		prompt = prompts.CorrectionPrompt(task, n, res.Output)
	}
}
