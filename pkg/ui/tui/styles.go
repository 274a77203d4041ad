package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	fbBlue     = lipgloss.Color("#1877F2")
	okGreen    = lipgloss.Color("#42B72A")
	warnOrange = lipgloss.Color("#F7B928")
	alertRed   = lipgloss.Color("#FA383E")
	dimWhite   = lipgloss.Color("#B0B3B8")

	logoStyle = lipgloss.NewStyle().
			Foreground(fbBlue).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(fbBlue).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(fbBlue).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(dimWhite).
			Width(14)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E4E6EB")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(okGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(alertRed).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warnOrange).
			Bold(true)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))

	logMessageStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 0, 0, 1)

	rateLimitNormalStyle = lipgloss.NewStyle().
				Foreground(okGreen)

	rateLimitWarningStyle = lipgloss.NewStyle().
				Foreground(warnOrange)

	rateLimitCriticalStyle = lipgloss.NewStyle().
				Foreground(alertRed)
)

// GetRateLimitStyle returns the appropriate style based on window usage
func GetRateLimitStyle(usage float64) lipgloss.Style {
	switch {
	case usage >= 90:
		return rateLimitCriticalStyle
	case usage >= 70:
		return rateLimitWarningStyle
	default:
		return rateLimitNormalStyle
	}
}
