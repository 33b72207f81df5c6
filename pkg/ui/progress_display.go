package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"docmirror/pkg/index"
)

// ProgressDisplay renders the download stage as a single refreshing line,
// or one line per document in verbose mode.
type ProgressDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	verbose   bool
	label     string
	total     int
	attempt   int
	completed int
	failed    int
	bytes     int64
	current   string
	startTime time.Time
	now       func() time.Time
}

// NewProgressDisplay creates a display writing to stderr
func NewProgressDisplay(verbose bool) *ProgressDisplay {
	return NewProgressDisplayTo(os.Stderr, verbose)
}

// NewProgressDisplayTo creates a display writing to out
func NewProgressDisplayTo(out io.Writer, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		verbose:   verbose,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Dataset starts a new section for the named dataset
func (p *ProgressDisplay) Dataset(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total > 0 {
		fmt.Fprintln(p.out)
	}
	p.label = name
	p.total, p.attempt = 0, 0
	p.completed, p.failed, p.bytes = 0, 0, 0
	p.current = ""
	p.startTime = p.now()
}

// OnAttempt marks the start of a document download
func (p *ProgressDisplay) OnAttempt(rec index.Record, n, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempt = n
	p.total = total
	p.current = rec.ID

	if !p.verbose {
		p.printProgress()
	}
}

// OnResult marks the end of a document download
func (p *ProgressDisplay) OnResult(rec index.Record, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = ""
	if err != nil {
		p.failed++
	} else {
		p.completed++
		p.bytes += rec.Bytes
	}

	switch {
	case !p.verbose:
		p.printProgress()
	case err != nil:
		fmt.Fprintf(p.out, "%s %s • %v\n", Red("✗"), rec.ID, err)
	default:
		fmt.Fprintf(p.out, "%s %s • %s\n", Green("✓"), rec.ID, formatBytes(rec.Bytes))
	}
}

// printProgress redraws the progress line
func (p *ProgressDisplay) printProgress() {
	const barWidth = 20

	done := p.completed + p.failed
	filled := 0
	if p.total > 0 {
		filled = min(barWidth, done*barWidth/p.total)
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %.1f/min • %s • %s",
		Cyan(p.label),
		bar,
		done,
		p.total,
		p.rate(),
		formatBytes(p.bytes),
		p.eta(),
	)
	if p.current != "" {
		line += " • " + p.current
	}
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.failed))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// Complete prints the stage summary
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := p.now().Sub(p.startTime)
	fmt.Fprintf(p.out, "\n%s Downloaded %d documents for %s\n", Green("✓"), p.completed, p.label)
	fmt.Fprintf(p.out, "  %s %s in %s (%.1f documents/min)\n",
		Dim("•"),
		formatBytes(p.bytes),
		formatDuration(elapsed),
		p.rate(),
	)
	if p.failed > 0 {
		fmt.Fprintf(p.out, "  %s %d downloads failed and will be retried on the next run\n", Dim("•"), p.failed)
	}
}

func (p *ProgressDisplay) rate() float64 {
	minutes := p.now().Sub(p.startTime).Minutes()
	if minutes <= 0 {
		return 0
	}
	return float64(p.completed) / minutes
}

// eta estimates time remaining from the pace so far
func (p *ProgressDisplay) eta() string {
	done := p.completed + p.failed
	if done == 0 {
		return "calculating..."
	}
	perDoc := p.now().Sub(p.startTime) / time.Duration(done)
	return formatDuration(perDoc * time.Duration(p.total-done))
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// formatBytes formats bytes in a human-readable way
func formatBytes(bytes int64) string {
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
