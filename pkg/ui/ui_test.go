package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"docmirror/pkg/config"
	"docmirror/pkg/index"
)

type recordingSender struct {
	sent []string
	err  error
}

func (r *recordingSender) Send(title, message string) error {
	r.sent = append(r.sent, title+"|"+message)
	return r.err
}

func TestNotifierSendsAndPrints(t *testing.T) {
	sender := &recordingSender{err: errors.New("no notification daemon")}
	var out bytes.Buffer
	n := NewNotifierWith(sender, &out)

	n.SendNotification("Verification needed", "dataset 4 is waiting")
	n.SendError("Run failed", "dataset 9")

	assert.Equal(t, []string{"Verification needed|dataset 4 is waiting", "Run failed|dataset 9"}, sender.sent)
	assert.Contains(t, out.String(), "dataset 4 is waiting")
	assert.Contains(t, out.String(), "dataset 9")
}

func TestNewNotifierHonoursConfig(t *testing.T) {
	n := NewNotifier(config.NotificationConfig{Enabled: false, NotificationType: NotifyDesktop})
	assert.Nil(t, n.sender)

	n = NewNotifier(config.NotificationConfig{Enabled: true, NotificationType: NotifyTerminal})
	assert.Nil(t, n.sender)
}

func TestToastTextEscapes(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt; &amp; &#34;c&#34; d", toastText("a <b> & \"c\"\nd"))
}

func TestProgressDisplay(t *testing.T) {
	var out bytes.Buffer
	p := NewProgressDisplayTo(&out, false)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := start
	p.now = func() time.Time { return clock }

	p.Dataset("dataset 4")
	p.OnAttempt(index.Record{ID: "EFTA00000001.pdf"}, 1, 2)
	clock = start.Add(30 * time.Second)
	p.OnResult(index.Record{ID: "EFTA00000001.pdf", Bytes: 2048}, nil)
	p.OnAttempt(index.Record{ID: "EFTA00000002.pdf"}, 2, 2)
	clock = start.Add(time.Minute)
	p.OnResult(index.Record{ID: "EFTA00000002.pdf"}, errors.New("timeout"))
	p.Complete()

	assert.Equal(t, 1, p.completed)
	assert.Equal(t, 1, p.failed)
	assert.Equal(t, int64(2048), p.bytes)
	assert.Contains(t, out.String(), "2/2")
	assert.Contains(t, out.String(), "1 failed")
	assert.Contains(t, out.String(), "Downloaded 1 documents for dataset 4")
}

func TestProgressDisplayVerbose(t *testing.T) {
	var out bytes.Buffer
	p := NewProgressDisplayTo(&out, true)

	p.OnAttempt(index.Record{ID: "EFTA00000001.pdf"}, 1, 1)
	p.OnResult(index.Record{ID: "EFTA00000001.pdf", Bytes: 1536}, nil)

	assert.Contains(t, out.String(), "EFTA00000001.pdf • 1.5 KB")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "500 B", formatBytes(500))
	assert.Equal(t, "1.0 MB", formatBytes(1<<20))
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h1m", formatDuration(61*time.Minute))
}

func TestTerminalSplitsErrorsFromReport(t *testing.T) {
	var out, errOut bytes.Buffer
	term := NewTerminal(&out, &errOut)

	term.Info("dataset 4", "12 complete")
	term.Success("done")
	term.Error("dataset 5", errors.New("index is corrupt"))
	term.Warning("retry limit reached")
	term.Error("no detail", nil)

	assert.Contains(t, out.String(), "dataset 4")
	assert.Contains(t, out.String(), "12 complete")
	assert.Contains(t, out.String(), "done")
	assert.NotContains(t, out.String(), "corrupt")

	assert.Contains(t, errOut.String(), "dataset 5: index is corrupt")
	assert.Contains(t, errOut.String(), "retry limit reached")
	assert.Contains(t, errOut.String(), "no detail")
	assert.NotContains(t, errOut.String(), "<nil>")
}
