package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestModel(t *testing.T) {
	model := NewModel(nil)

	model.Update(DatasetMsg{Name: "dataset 4"})
	if model.dataset != "dataset 4" {
		t.Errorf("Expected dataset 4, got %q", model.dataset)
	}

	model.Update(AttemptMsg{ID: "EFTA00000001.pdf", Page: 1, N: 1, Total: 4})
	if model.current == nil || model.current.ID != "EFTA00000001.pdf" {
		t.Fatalf("Expected an active item, got %+v", model.current)
	}
	if f := model.Fraction(); f != 0 {
		t.Errorf("Expected fraction 0 while the first attempt runs, got %f", f)
	}

	model.Update(ResultMsg{ID: "EFTA00000001.pdf", Bytes: 2048})
	if model.current != nil {
		t.Errorf("Expected no active item after a result")
	}
	if model.completed != 1 || model.bytes != 2048 {
		t.Errorf("Expected 1 completed and 2048 bytes, got %d and %d", model.completed, model.bytes)
	}
	if f := model.Fraction(); f != 0.25 {
		t.Errorf("Expected fraction 0.25, got %f", f)
	}

	model.Update(AttemptMsg{ID: "EFTA00000002.pdf", Page: 1, N: 2, Total: 4})
	model.Update(ResultMsg{ID: "EFTA00000002.pdf", Err: errors.New("server_error error (code 503)")})
	if model.failed != 1 {
		t.Errorf("Expected 1 failed, got %d", model.failed)
	}
	if len(model.recent) != 2 || model.recent[1].State != ItemFailed {
		t.Errorf("Expected the failed item last in recent, got %+v", model.recent)
	}

	// dataset + failure
	if len(model.logs) != 2 {
		t.Errorf("Expected 2 log messages, got %d", len(model.logs))
	}
}

func TestModelBoundsHistory(t *testing.T) {
	model := NewModel(nil)
	for i := 0; i < 100; i++ {
		model.Update(LogMsg{Level: LevelInfo, Message: "line"})
		model.Update(ResultMsg{ID: "x"})
	}
	if len(model.logs) != model.maxLogs {
		t.Errorf("Expected %d logs, got %d", model.maxLogs, len(model.logs))
	}
	if len(model.recent) != model.maxItems {
		t.Errorf("Expected %d recent items, got %d", model.maxItems, len(model.recent))
	}
}

func TestQuitCancelsRun(t *testing.T) {
	var cancelled bool
	model := NewModel(func() { cancelled = true })

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !cancelled {
		t.Error("Expected quit to cancel the run")
	}
	if cmd == nil {
		t.Error("Expected a quit command")
	}
}

func TestViewRenders(t *testing.T) {
	model := NewModel(nil)
	if got := model.View(); got != "Initializing..." {
		t.Errorf("Expected placeholder before the first resize, got %q", got)
	}

	model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model.Update(AttemptMsg{ID: "EFTA00000009.pdf", Page: 3, N: 1, Total: 2})
	view := model.View()
	for _, want := range []string{"STATS", "EFTA00000009.pdf", "LOG"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q", want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{500, "500 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}

	for _, test := range tests {
		result := FormatBytes(test.bytes)
		if result != test.expected {
			t.Errorf("FormatBytes(%d) = %s, expected %s", test.bytes, result, test.expected)
		}
	}
}
