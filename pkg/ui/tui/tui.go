// Package tui is the full-screen dashboard shown during a run.
package tui

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"docmirror/pkg/index"
)

// Forwarder receives notifications after the dashboard has logged them
type Forwarder interface {
	SendNotification(title, message string)
}

// TUI runs the dashboard program and feeds it run events. It satisfies the
// download observer and the notifier the mirror expects.
type TUI struct {
	program *tea.Program
	model   *Model
	forward Forwarder

	mu        sync.Mutex
	suspended bool
	done      chan struct{}
}

// New creates a dashboard. Quitting it calls cancel so the run stops
// cleanly. forward may be nil.
func New(cancel context.CancelFunc, forward Forwarder, opts ...tea.ProgramOption) *TUI {
	model := NewModel(cancel)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
		forward: forward,
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background
func (t *TUI) Start() {
	go func() {
		defer close(t.done)
		if _, err := t.program.Run(); err != nil {
			fmt.Printf("dashboard stopped: %v\n", err)
		}
	}()
}

// Stop quits the program and waits for the terminal to be restored
func (t *TUI) Stop() {
	t.program.Quit()
	<-t.done
}

// Send sends a message to the program
func (t *TUI) Send(msg tea.Msg) {
	t.program.Send(msg)
}

// Dataset announces the dataset being worked on
func (t *TUI) Dataset(name string) {
	t.Send(DatasetMsg{Name: name})
}

// OnAttempt reports a document download starting
func (t *TUI) OnAttempt(rec index.Record, n, total int) {
	t.Send(AttemptMsg{ID: rec.ID, Page: rec.SourcePage, N: n, Total: total})
}

// OnResult reports a document download ending
func (t *TUI) OnResult(rec index.Record, err error) {
	t.Send(ResultMsg{ID: rec.ID, Bytes: rec.Bytes, Err: err})
}

// SendNotification logs the notice in the dashboard and forwards it
func (t *TUI) SendNotification(title, message string) {
	t.Send(LogMsg{Level: LevelWarn, Message: title + ": " + message})
	if t.forward != nil {
		t.forward.SendNotification(title, message)
	}
}

// Log adds a line to the log pane
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Suspend hands the terminal back so the human can answer a prompt
func (t *TUI) Suspend() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.suspended {
		return nil
	}
	if err := t.program.ReleaseTerminal(); err != nil {
		return err
	}
	t.suspended = true
	return nil
}

// Resume takes the terminal back after Suspend
func (t *TUI) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.suspended {
		return nil
	}
	t.suspended = false
	return t.program.RestoreTerminal()
}
