package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fbcleanup/pkg/ui"
)

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the dashboard state. It is only touched from the bubbletea
// event loop; other goroutines talk to it through TUI.Send.
type Model struct {
	spinner spinner.Model
	window  progress.Model

	progress ui.Progress
	status   string
	finished bool

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	onQuit func()
	now    func() time.Time
}

// NewModel creates the dashboard model. onQuit runs once when the user
// presses q; it should cancel the run.
func NewModel(onQuit func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(fbBlue)

	w := progress.New(progress.WithGradient(string(fbBlue), string(alertRed)), progress.WithoutPercentage())
	w.Width = 40

	return Model{
		spinner:        s,
		window:         w,
		status:         "Starting",
		maxLogMessages: 50,
		onQuit:         onQuit,
		now:            time.Now,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// SetProgress replaces the progress snapshot
func (m *Model) SetProgress(p ui.Progress) {
	m.progress = p
	switch {
	case p.Blocked:
		m.status = "Blocked"
	case m.finished:
		m.status = "Finished"
	default:
		m.status = "Deleting"
	}
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR", "FATAL":
		color = alertRed
	case "WARN":
		color = warnOrange
	case "SUCCESS":
		color = okGreen
	case "INFO":
		color = fbBlue
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    m.now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Progress returns the latest snapshot
func (m Model) Progress() ui.Progress {
	return m.progress
}

// Status is the headline state shown next to the spinner
func (m Model) Status() string {
	return m.status
}
