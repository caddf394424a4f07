package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/engine"
	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/journal"
)

var (
	styleTask    = lipgloss.NewStyle().Bold(true)
	styleOutput  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("green")).Bold(true)
	styleFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true)
	styleSkipped = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow"))
)

// printer renders the event stream as linear output for pipes and CI.
// Parallel tasks interleave, so every line carries its task name.
type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

// Handle renders one event.
func (p *printer) Handle(ev events.TaskEvent) {
	switch ev.Kind {
	case events.KindStarted:
		fmt.Fprintf(p.w, "%s %s\n", styleTask.Render("▶"), styleTask.Render(ev.TaskName))

	case events.KindOutput:
		fmt.Fprintf(p.w, "  %s %s\n", styleOutput.Render(ev.TaskName+" │"), ev.Line)

	case events.KindFinished:
		switch ev.Status {
		case events.StatusSuccess:
			fmt.Fprintf(p.w, "%s %s (%s, %s)\n", styleSuccess.Render("✓"), ev.TaskName, ev.Duration.Round(time.Millisecond), attempts(ev.Attempts))
		case events.StatusFailed:
			fmt.Fprintf(p.w, "%s %s (%s): %v\n", styleFailed.Render("✗"), ev.TaskName, attempts(ev.Attempts), ev.Err)
		case events.StatusSkipped:
			fmt.Fprintf(p.w, "%s %s\n", styleSkipped.Render("-"), styleSkipped.Render(ev.TaskName+" (skipped)"))
		}
	}
}

func attempts(n int) string {
	if n == 1 {
		return "1 attempt"
	}
	return fmt.Sprintf("%d attempts", n)
}

// printSummary writes the run report.
func printSummary(w io.Writer, report *engine.Report, rec *journal.Recorder) {
	fmt.Fprintln(w)
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "%s %s\n", styleWarn.Render("warning:"), warning)
	}

	mode := "sequential"
	if report.Parallel {
		mode = "parallel"
	}
	fmt.Fprintf(w, "%d succeeded, %d failed, %d skipped (%s)\n",
		report.Count(events.StatusSuccess),
		report.Count(events.StatusFailed),
		report.Count(events.StatusSkipped),
		mode,
	)
	if report.AbortedEarly {
		fmt.Fprintln(w, styleFailed.Render("Stopped early after a failure"))
	}
	if rec != nil {
		fmt.Fprintf(w, "Run %s recorded in the journal\n", rec.RunID())
	}
}
