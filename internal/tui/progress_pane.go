package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/events"
)

// ProgressPaneModel shows run-wide counts and the final summary.
type ProgressPaneModel struct {
	total     int
	running   int
	succeeded int
	failed    int
	skipped   int

	done         bool
	abortedEarly bool
	failedNames  []string

	width   int
	height  int
	focused bool
}

// NewProgressPaneModel creates a progress pane for total tasks.
func NewProgressPaneModel(total int) ProgressPaneModel {
	return ProgressPaneModel{total: total}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	ev, ok := msg.(events.TaskEvent)
	if !ok {
		return m, nil
	}

	switch ev.Kind {
	case events.KindStarted:
		m.running++
	case events.KindFinished:
		// Skipped tasks never started.
		if ev.Status != events.StatusSkipped {
			m.running = max(0, m.running-1)
		}
		switch ev.Status {
		case events.StatusSuccess:
			m.succeeded++
		case events.StatusFailed:
			m.failed++
		case events.StatusSkipped:
			m.skipped++
		}
	case events.KindRunFinished:
		m.done = true
		m.abortedEarly = ev.AbortedEarly
		m.failedNames = append([]string(nil), ev.Failed...)
	}

	return m, nil
}

// Pending returns the number of tasks that have not started or been skipped.
func (m ProgressPaneModel) Pending() int {
	return max(0, m.total-m.running-m.succeeded-m.failed-m.skipped)
}

// Done reports whether the run has finished.
func (m ProgressPaneModel) Done() bool {
	return m.done
}

// View renders the progress pane.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Total:     %d\n", m.total))
	b.WriteString(fmt.Sprintf("Succeeded: %s\n", StyleStatusComplete.Render(fmt.Sprintf("%d", m.succeeded))))
	b.WriteString(fmt.Sprintf("Running:   %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.running))))
	b.WriteString(fmt.Sprintf("Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed))))
	b.WriteString(fmt.Sprintf("Skipped:   %s\n", StyleStatusSkipped.Render(fmt.Sprintf("%d", m.skipped))))
	b.WriteString(fmt.Sprintf("Pending:   %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.Pending()))))

	b.WriteString("\n")

	if m.total > 0 {
		barWidth := max(min(m.width-14, 40), 1)
		succeededWidth := (m.succeeded * barWidth) / m.total
		failedWidth := (m.failed * barWidth) / m.total
		runningWidth := (m.running * barWidth) / m.total
		restWidth := barWidth - succeededWidth - failedWidth - runningWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, succeededWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, restWidth)))

		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, m.succeeded, m.total))
	}

	if m.done {
		b.WriteString("\n")
		switch {
		case len(m.failedNames) == 0:
			b.WriteString(StyleStatusComplete.Render("All tasks completed"))
		case m.abortedEarly:
			b.WriteString(StyleStatusFailed.Render("Stopped early: " + strings.Join(m.failedNames, ", ")))
		default:
			b.WriteString(StyleStatusFailed.Render("Failed: " + strings.Join(m.failedNames, ", ")))
		}
		b.WriteString("\n")
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
