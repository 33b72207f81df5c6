package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the dashboard
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	columnWidth := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(columnWidth),
		m.renderCurrentPanel(columnWidth),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderRecentPanel(columnWidth),
		m.renderLogsPanel(columnWidth),
	)

	sections := []string{
		headerStyle.Width(m.width).Render("docmirror  " + dimStyle.Render(m.dataset)),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" STATS ")

	stats := []string{
		stat("Elapsed:", formatDuration(time.Since(m.started))),
		stat("Completed:", fmt.Sprintf("%d documents", m.completed)),
		stat("Failed:", fmt.Sprintf("%d", m.failed)),
		stat("Written:", FormatBytes(m.bytes)),
		stat("Rate:", fmt.Sprintf("%.1f/min", m.Rate())),
	}
	if m.total > 0 {
		stats = append(stats, "", fmt.Sprintf("%s %d/%d", m.progress.ViewAs(m.Fraction()), m.attempt, m.total))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderCurrentPanel(width int) string {
	title := titleStyle.Render(" DOWNLOADING ")

	content := dimStyle.Render("Idle")
	if m.current != nil {
		content = fmt.Sprintf("%s %s %s",
			m.spinner.View(),
			activeItemStyle.Render(m.current.ID),
			dimStyle.Render(fmt.Sprintf("page %d • %s", m.current.Page, formatDuration(time.Since(m.current.StartedAt)))),
		)
	}

	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m *Model) renderRecentPanel(width int) string {
	title := titleStyle.Render(" RECENT ")

	var items []string
	for i := len(m.recent) - 1; i >= 0; i-- {
		item := m.recent[i]
		if item.State == ItemFailed {
			items = append(items, itemStyle.Render(errorStyle.Render("✗ ")+item.ID))
			continue
		}
		items = append(items, itemStyle.Render(successStyle.Render("✓ ")+item.ID+" "+dimStyle.Render(FormatBytes(item.Bytes))))
	}
	if len(items) == 0 {
		items = append(items, dimStyle.Render("Nothing yet"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := max(0, len(m.logs)-10)
	maxMsgLen := max(10, width-25)

	var lines []string
	for _, entry := range m.logs[start:] {
		msg := entry.Message
		if len(msg) > maxMsgLen {
			msg = msg[:maxMsgLen-3] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			logTimestampStyle.Render(entry.Time.Format("15:04:05")),
			lipgloss.NewStyle().Foreground(levelColor(entry.Level)).Bold(true).Render(fmt.Sprintf("[%-7s]", entry.Level)),
			dimStyle.Render(msg),
		))
	}

	content := strings.Join(lines, "\n")
	if content == "" {
		content = dimStyle.Render("No logs yet...")
	}

	return panelStyle.Width(width).Height(max(5, m.height-24)).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  q/Q      - Stop the run (state is saved)
  ctrl+l   - Clear the log
  ?        - Toggle this help

  ` + successStyle.Render("✓") + ` completed   ` + errorStyle.Render("✗") + ` failed, retried next run   ` + warningStyle.Render("!") + ` needs you
`
	return panelStyle.Width(m.width).Render(help)
}

func stat(label, value string) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(value))
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
