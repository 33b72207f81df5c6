package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// DatasetMsg is sent when work moves to another dataset
type DatasetMsg struct {
	Name string
}

// AttemptMsg is sent when a document download starts
type AttemptMsg struct {
	ID    string
	Page  int
	N     int
	Total int
}

// ResultMsg is sent when a document download ends
type ResultMsg struct {
	ID    string
	Bytes int64
	Err   error
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to refresh elapsed times
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(10, msg.Width/2-12)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case DatasetMsg:
		m.dataset = msg.Name
		m.finishCurrent()
		m.attempt, m.total = 0, 0
		m.addLog(LevelInfo, "Working on "+msg.Name)
		return m, nil

	case AttemptMsg:
		m.startItem(msg.ID, msg.Page, msg.N, msg.Total)
		return m, nil

	case ResultMsg:
		m.finishItem(msg.ID, msg.Bytes, msg.Err)
		return m, nil

	case LogMsg:
		m.addLog(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logs = nil
		return m, nil
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
