package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/events"
)

const listWidth = 28

// RowStatus is the display state of one task.
type RowStatus int

const (
	RowPending RowStatus = iota
	RowRunning
	RowSucceeded
	RowFailed
	RowSkipped
)

// TaskRow is the display state of a single task in the run.
type TaskRow struct {
	Name     string
	Status   RowStatus
	Output   []string
	Attempts int
	Duration time.Duration
	Err      error
}

// TaskPaneModel shows the task list next to the selected task's output.
type TaskPaneModel struct {
	rows        []*TaskRow // indexed by event TaskIndex
	selectedIdx int
	follow      bool // select each task as it starts
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int // for debouncing
}

// NewTaskPaneModel creates a pane for tasks in run order.
func NewTaskPaneModel(names []string) TaskPaneModel {
	rows := make([]*TaskRow, len(names))
	for i, name := range names {
		rows[i] = &TaskRow{Name: name}
	}
	m := TaskPaneModel{
		rows:     rows,
		follow:   true,
		viewport: viewport.New(0, 0),
	}
	m.updateViewportContent()
	return m
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.rows)-1 {
				m.selectedIdx++
				m.follow = false
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.follow = false
				m.updateViewportContent()
			}
		case KeyFollow:
			m.follow = true
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskEvent:
		row := m.row(msg.TaskIndex)
		if row == nil {
			break
		}

		switch msg.Kind {
		case events.KindStarted:
			row.Status = RowRunning
			if m.follow {
				m.selectedIdx = msg.TaskIndex
			}
			if m.selectedIdx == msg.TaskIndex {
				m.updateViewportContent()
			}

		case events.KindOutput:
			row.Output = append(row.Output, msg.Line)
			if m.selectedIdx == msg.TaskIndex {
				m.updateTag++
				tag := m.updateTag
				return m, tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
					return tickMsg{tag: tag}
				})
			}

		case events.KindFinished:
			row.Attempts = msg.Attempts
			row.Duration = msg.Duration
			row.Err = msg.Err
			switch msg.Status {
			case events.StatusSuccess:
				row.Status = RowSucceeded
				row.Output = append(row.Output, fmt.Sprintf("\n[Completed in %v after %d attempt(s)]", msg.Duration.Round(time.Millisecond), msg.Attempts))
			case events.StatusFailed:
				row.Status = RowFailed
				row.Output = append(row.Output, fmt.Sprintf("\n[Failed after %d attempt(s): %v]", msg.Attempts, msg.Err))
			case events.StatusSkipped:
				row.Status = RowSkipped
			}
			if m.selectedIdx == msg.TaskIndex {
				m.updateViewportContent()
			}
		}

	case tickMsg:
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	viewportWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(StyleStatusPending.Render("Nothing to run"))
	}

	for i, row := range m.rows {
		name := row.Name
		if w := width - 3; len([]rune(name)) > w && w > 3 {
			name = string([]rune(name)[:w-3]) + "..."
		}

		line := fmt.Sprintf("%s %s", StatusIcon(row.Status), name)
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func StatusIcon(status RowStatus) string {
	switch status {
	case RowRunning:
		return StyleStatusRunning.Render("●")
	case RowSucceeded:
		return StyleStatusComplete.Render("✓")
	case RowFailed:
		return StyleStatusFailed.Render("✗")
	case RowSkipped:
		return StyleStatusSkipped.Render("-")
	default:
		return StyleStatusPending.Render("○")
	}
}

// Row returns the task at index, or nil.
func (m TaskPaneModel) Row(index int) *TaskRow {
	return m.row(index)
}

func (m TaskPaneModel) row(index int) *TaskRow {
	if index < 0 || index >= len(m.rows) {
		return nil
	}
	return m.rows[index]
}

// Selected returns the index of the selected task.
func (m TaskPaneModel) Selected() int {
	return m.selectedIdx
}

func (m *TaskPaneModel) updateViewportContent() {
	row := m.row(m.selectedIdx)
	if row == nil {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}
	if row.Status == RowPending && len(row.Output) == 0 {
		m.viewport.SetContent(fmt.Sprintf("%s has not started yet.", row.Name))
		return
	}
	if row.Status == RowSkipped {
		m.viewport.SetContent(fmt.Sprintf("%s was skipped after an earlier failure.", row.Name))
		return
	}

	m.viewport.SetContent(strings.Join(row.Output, "\n"))
	m.viewport.GotoBottom()
}

func (m *TaskPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-listWidth-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
