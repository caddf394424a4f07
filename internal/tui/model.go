// Package tui renders a run's event stream as a live terminal view.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/taskflow/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTasks PaneID = iota
	PaneProgress
)

const paneCount = 2

// Model is the root Bubble Tea model for the TUI.
// Events arrive as events.TaskEvent messages sent by the run's single
// stream consumer through tea.Program.Send.
type Model struct {
	taskPane     TaskPaneModel
	progressPane ProgressPaneModel
	focusedPane  PaneID
	title        string
	width        int
	height       int
	quitting     bool
}

// New creates a TUI model for tasks named in run order.
func New(title string, names []string) Model {
	m := Model{
		taskPane:     NewTaskPaneModel(names),
		progressPane: NewProgressPaneModel(len(names)),
		focusedPane:  PaneTasks,
		title:        title,
	}
	m.updateFocusStates()
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Done reports whether the run has finished.
func (m Model) Done() bool {
	return m.progressPane.Done()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneTasks
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneProgress
			m.updateFocusStates()

		default:
			if m.focusedPane == PaneTasks {
				var cmd tea.Cmd
				m.taskPane, cmd = m.taskPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case events.TaskEvent:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd)
		m.progressPane, cmd = m.progressPane.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		var cmd tea.Cmd
		m.taskPane, cmd = m.taskPane.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := StyleTitle.Render(m.title)
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.taskPane.View(), m.progressPane.View())

	return lipgloss.JoinVertical(lipgloss.Left, header, body, HelpView(m.Done()))
}

// computeLayout splits the screen 70/30 between tasks and progress, keeping
// one line each for the header and help bar.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 70) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 2

	m.taskPane.SetSize(leftWidth, availableHeight)
	m.progressPane.SetSize(rightWidth, availableHeight)

	m.updateFocusStates()
}

func (m *Model) updateFocusStates() {
	m.taskPane.SetFocused(m.focusedPane == PaneTasks)
	m.progressPane.SetFocused(m.focusedPane == PaneProgress)
}
