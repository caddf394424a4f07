package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aristath/taskflow/internal/tasklist"
)

// DefaultOutputBudget caps how much prior output a correction prompt carries.
const DefaultOutputBudget = 3000

const truncationMarker = "[... earlier output truncated ...]\n"

// PromptBuilder produces the prompts sent to the backend. Attempts share no
// session, so each prompt must stand on its own.
type PromptBuilder interface {
	TaskPrompt(task tasklist.Task) string
	CorrectionPrompt(task tasklist.Task, failedAttempt int, priorOutput string) string
}

// DefaultPrompts is the built-in PromptBuilder.
type DefaultPrompts struct {
	Budget int // Prior-output budget in bytes; <= 0 uses DefaultOutputBudget
}

// TaskPrompt implements PromptBuilder.
func (p DefaultPrompts) TaskPrompt(task tasklist.Task) string {
	var b strings.Builder
	b.WriteString("Complete the following task:\n\n")
	b.WriteString(task.Name)
	b.WriteString("\n")
	writeScope(&b, task)
	return b.String()
}

// CorrectionPrompt implements PromptBuilder.
func (p DefaultPrompts) CorrectionPrompt(task tasklist.Task, failedAttempt int, priorOutput string) string {
	budget := p.Budget
	if budget <= 0 {
		budget = DefaultOutputBudget
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Attempt %d at the following task failed:\n\n%s\n", failedAttempt, task.Name)
	writeScope(&b, task)
	b.WriteString("\nOutput from the failed attempt:\n\n```\n")
	b.WriteString(Truncate(strings.TrimRight(priorOutput, "\n"), budget))
	b.WriteString("\n```\n\nFind the cause of the failure, fix it, and complete the task.\n")
	return b.String()
}

func writeScope(b *strings.Builder, task tasklist.Task) {
	if len(task.TargetFiles) == 0 {
		return
	}
	b.WriteString("\nOnly modify these files: ")
	b.WriteString(strings.Join(task.TargetFiles, ", "))
	b.WriteString("\n")
}

// Truncate keeps the last budget bytes of s, cut on a rune boundary, and
// marks the cut. Final error lines matter more than early boilerplate.
func Truncate(s string, budget int) string {
	if budget <= 0 || len(s) <= budget {
		return s
	}

	tail := s[len(s)-budget:]
	for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
		tail = tail[1:]
	}
	return truncationMarker + tail
}
