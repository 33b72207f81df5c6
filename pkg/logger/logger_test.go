package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docmirror/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).With().Timestamp().Logger()
	return &zerologLogger{logger: &zlog, fields: make(map[string]interface{})}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level quiet", &config.LoggingConfig{Level: "debug", Quiet: true}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNewWritesActivityFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "download.log")
	l, err := New(&config.LoggingConfig{Level: "info", File: path, Quiet: true})
	require.NoError(t, err)

	LogActivity(l, EventComplete, "Document stored", map[string]interface{}{
		"dataset": 2,
		"id":      "EFTA00000042.pdf",
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.Contains(t, line, `"event":"complete"`)
	assert.Contains(t, line, `"id":"EFTA00000042.pdf"`)
	assert.Contains(t, line, `"app":"docmirror"`)
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.WithField("dataset", 7).
		WithFields(map[string]interface{}{"page": 12, "new": true}).
		WithError(errors.New("boom")).
		Info("page scanned")

	out := buf.String()
	assert.Contains(t, out, "page scanned")
	assert.Contains(t, out, `"dataset":7`)
	assert.Contains(t, out, `"page":12`)
	assert.Contains(t, out, `"new":true`)
	assert.Contains(t, out, "boom")
}

func TestWithErrorNil(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)
	assert.Same(t, l, l.WithError(nil))
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.InfoWithFields("typed", map[string]interface{}{
		"bytes":    int64(2048),
		"delay":    750 * time.Millisecond,
		"at":       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		"ids":      []string{"a", "b"},
		"custom":   struct{ N int }{N: 1},
		"fraction": 0.5,
	})

	out := buf.String()
	assert.Contains(t, out, `"bytes":2048`)
	assert.Contains(t, out, `"ids":["a","b"]`)
	assert.Contains(t, out, `"fraction":0.5`)
}

func TestLogActivityLevels(t *testing.T) {
	tl := NewTestLogger()

	LogActivity(tl, EventFailed, "Download failed", map[string]interface{}{"id": "x"})
	LogActivity(tl, EventAttempt, "Downloading", nil)
	LogActivity(tl, EventDiscovered, "New documents", nil)
	LogActivity(nil, EventDiscovered, "ignored", nil)

	require.Len(t, tl.GetMessagesByLevel("WARN"), 1)
	require.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)
	require.Len(t, tl.GetMessagesByLevel("INFO"), 1)
	assert.Equal(t, "x", tl.GetEvents(EventFailed)[0].Fields["id"])
}

func TestTestLoggerSharesBuffer(t *testing.T) {
	tl := NewTestLogger()
	derived := tl.WithField("dataset", 1).WithError(errors.New("x"))
	derived.Warn("from child")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, 1, msgs[0].Fields["dataset"])
	assert.EqualError(t, msgs[0].Error, "x")
	assert.True(t, tl.HasMessage("from child"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}
