package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	columnWidth := (m.width - 4) / 2
	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		lipgloss.JoinVertical(lipgloss.Left,
			m.renderStatsPanel(columnWidth),
			m.renderPositionPanel(columnWidth),
		),
		"  ",
		lipgloss.JoinVertical(lipgloss.Left,
			m.renderWindowPanel(columnWidth),
			m.renderBlockPanel(columnWidth),
		),
	)
	sections = append(sections, mainContent, m.renderLogsPanel(m.width-2))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("q quit • ? help"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	status := m.status
	switch {
	case m.progress.Blocked:
		status = errorStyle.Render(status)
	case m.finished:
		status = successStyle.Render(status)
	default:
		status = m.spinner.View() + " " + status
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, logoStyle.Render("fbcleanup"), " ", status)
}

func (m Model) row(label, value string) string {
	return statsLabelStyle.Render(label) + statsValueStyle.Render(value)
}

func (m Model) panel(width int, title string, rows ...string) string {
	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(" "+title+" "), content),
	)
}

// renderStatsPanel renders the deletion counters
func (m Model) renderStatsPanel(width int) string {
	p := m.progress
	elapsed := time.Duration(0)
	if !p.Started.IsZero() {
		elapsed = m.now().Sub(p.Started)
	}

	rows := []string{
		m.row("Elapsed", formatDuration(elapsed)),
		m.row("Deleted", fmt.Sprintf("%d", p.Deleted)),
		m.row("Failed", fmt.Sprintf("%d", p.Failed)),
		m.row("Skipped", fmt.Sprintf("%d", p.Skipped)),
		m.row("Errors", fmt.Sprintf("%d", p.Errors)),
	}
	if !p.Started.IsZero() {
		rows = append(rows, m.row("Rate", fmt.Sprintf("%.1f/hour", p.Rate(m.now()))))
	}
	return m.panel(width, "DELETIONS", rows...)
}

// renderPositionPanel shows where in the activity log the run is
func (m Model) renderPositionPanel(width int) string {
	p := m.progress
	url := p.URL
	if limit := width - 6; limit > 3 && len(url) > limit {
		url = url[:limit-3] + "..."
	}
	return m.panel(width, "POSITION",
		m.row("Month", p.Position()),
		logMessageStyle.Render(url),
	)
}

// renderWindowPanel renders the hourly deletion window
func (m Model) renderWindowPanel(width int) string {
	p := m.progress
	usage := p.WindowUsage()
	style := GetRateLimitStyle(usage)

	return m.panel(width, "HOURLY WINDOW",
		m.row("Used", style.Render(fmt.Sprintf("%d/%d (%.0f%%)", p.WindowUsed, p.WindowMax, usage))),
		m.window.View(),
	)
}

// renderBlockPanel renders block status and the resume time
func (m Model) renderBlockPanel(width int) string {
	p := m.progress
	if !p.Blocked {
		rows := []string{successStyle.Render("No block detected")}
		if p.BlockCount > 0 {
			rows = append(rows, m.row("Past blocks", fmt.Sprintf("%d", p.BlockCount)))
		}
		return m.panel(width, "BLOCK STATUS", rows...)
	}

	wait := p.ResumeAt.Sub(m.now())
	return m.panel(width, "BLOCK STATUS",
		errorStyle.Render(fmt.Sprintf("BLOCKED (#%d)", p.BlockCount)),
		m.row("Resume at", p.ResumeAt.Local().Format("Jan 2 15:04")),
		m.row("Wait", warningStyle.Render(formatDuration(wait))),
	)
}

// renderLogsPanel renders the log tail
func (m Model) renderLogsPanel(width int) string {
	lines := m.height - 22
	if lines < 5 {
		lines = 5
	}
	start := len(m.logMessages) - lines
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))

		msg := log.Message
		if limit := width - 25; limit > 3 && len(msg) > limit {
			msg = msg[:limit-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(msg)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = logMessageStyle.Render("No logs yet...")
	}
	return m.panel(width, "LOG", content)
}

// renderHelp renders the help panel
func (m Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Stop after the current item and quit
    ?        - Toggle this help
    ctrl+l   - Clear the log

  Status:
    ` + successStyle.Render("Green") + `    - Healthy
    ` + warningStyle.Render("Orange") + `   - Window nearly full
    ` + errorStyle.Render("Red") + `      - Blocked or window full
`
	return panelStyle.Width(m.width - 2).Render(help)
}

// formatDuration formats a duration as hh:mm:ss or mm:ss
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
