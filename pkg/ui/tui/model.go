package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Log levels shown in the log pane
const (
	LevelInfo    = "INFO"
	LevelSuccess = "SUCCESS"
	LevelWarn    = "WARN"
	LevelError   = "ERROR"
)

// ItemState is where a document stands in the current download stage
type ItemState int

const (
	ItemActive ItemState = iota
	ItemCompleted
	ItemFailed
)

// Item is one document attempt
type Item struct {
	ID        string
	Page      int
	State     ItemState
	Bytes     int64
	Error     string
	StartedAt time.Time
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
}

// Model is the dashboard state. It is only touched from Update, on the
// program's goroutine.
type Model struct {
	spinner  spinner.Model
	progress progress.Model

	dataset string
	current *Item
	recent  []Item
	attempt int
	total   int

	completed int
	failed    int
	bytes     int64
	started   time.Time

	logs     []LogMessage
	maxLogs  int
	maxItems int

	width    int
	height   int
	showHelp bool

	onQuit func()
}

// NewModel creates the dashboard model. onQuit runs when the human quits.
func NewModel(onQuit func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return &Model{
		spinner:  s,
		progress: p,
		started:  time.Now(),
		maxLogs:  50,
		maxItems: 8,
		onQuit:   onQuit,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func (m *Model) startItem(id string, page, n, total int) {
	m.finishCurrent()
	m.attempt = n
	m.total = total
	m.current = &Item{ID: id, Page: page, State: ItemActive, StartedAt: time.Now()}
}

func (m *Model) finishItem(id string, bytes int64, err error) {
	item := Item{ID: id, State: ItemCompleted, Bytes: bytes}
	if m.current != nil && m.current.ID == id {
		item = *m.current
		item.Bytes = bytes
		m.current = nil
	}

	if err != nil {
		item.State = ItemFailed
		item.Error = err.Error()
		m.failed++
		m.addLog(LevelError, fmt.Sprintf("%s: %v", id, err))
	} else {
		item.State = ItemCompleted
		m.completed++
		m.bytes += bytes
	}

	m.recent = append(m.recent, item)
	if len(m.recent) > m.maxItems {
		m.recent = m.recent[len(m.recent)-m.maxItems:]
	}
}

// finishCurrent drops an attempt that never reported a result
func (m *Model) finishCurrent() {
	m.current = nil
}

func (m *Model) addLog(level, message string) {
	m.logs = append(m.logs, LogMessage{Time: time.Now(), Level: level, Message: message})
	if len(m.logs) > m.maxLogs {
		m.logs = m.logs[len(m.logs)-m.maxLogs:]
	}
}

// Fraction is how far the current download stage has come
func (m *Model) Fraction() float64 {
	if m.total == 0 {
		return 0
	}
	done := m.attempt
	if m.current != nil {
		done--
	}
	f := float64(done) / float64(m.total)
	if f > 1 {
		f = 1
	}
	return f
}

// Rate is completed documents per minute since the dashboard started
func (m *Model) Rate() float64 {
	elapsed := time.Since(m.started).Minutes()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.completed) / elapsed
}

// FormatBytes formats bytes to human readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
