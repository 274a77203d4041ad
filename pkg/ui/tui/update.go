package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"fbcleanup/pkg/ui"
)

// ProgressMsg carries a new run snapshot
type ProgressMsg ui.Progress

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// DoneMsg marks the end of the run; the dashboard stays up until quit
type DoneMsg struct{}

// TickMsg is sent periodically to refresh elapsed times
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.window.Width = clamp(msg.Width/2-16, 10, 60)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		model, cmd := m.window.Update(msg)
		if pm, ok := model.(progress.Model); ok {
			m.window = pm
		}
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case ProgressMsg:
		prevBlocked := m.progress.Blocked
		m.SetProgress(ui.Progress(msg))
		if m.progress.Blocked && !prevBlocked {
			m.AddLogMessage("ERROR", "Block detected, stopping run")
		}
		return m, m.window.SetPercent(m.progress.WindowUsage() / 100)

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil

	case DoneMsg:
		m.finished = true
		if !m.progress.Blocked {
			m.status = "Finished"
		}
		m.AddLogMessage("SUCCESS", "Run finished, press q to exit")
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.onQuit != nil && !m.finished {
			m.onQuit()
			m.onQuit = nil
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
