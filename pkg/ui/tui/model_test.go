package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fbcleanup/pkg/ui"
)

var testNow = time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

func newTestModel(onQuit func()) *Model {
	m := NewModel(onQuit)
	m.now = func() time.Time { return testNow }
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return &m
}

func TestModelProgress(t *testing.T) {
	m := newTestModel(nil)

	m.Update(ProgressMsg{
		Year: 2019, Month: 3, Page: 2,
		Deleted: 42, Failed: 3, WindowUsed: 45, WindowMax: 50,
		Started: testNow.Add(-2 * time.Hour),
	})

	assert.Equal(t, "Deleting", m.Status())
	assert.Equal(t, 42, m.Progress().Deleted)

	view := m.View()
	assert.Contains(t, view, "2019-03 p2")
	assert.Contains(t, view, "45/50 (90%)")
	assert.Contains(t, view, "21.0/hour")
	assert.Contains(t, view, "No block detected")
}

func TestModelBlock(t *testing.T) {
	m := newTestModel(nil)

	m.Update(ProgressMsg{Blocked: true, BlockCount: 2, ResumeAt: testNow.Add(24 * time.Hour)})

	assert.Equal(t, "Blocked", m.Status())
	require.NotEmpty(t, m.logMessages)
	assert.Equal(t, "ERROR", m.logMessages[len(m.logMessages)-1].Level)

	view := m.View()
	assert.Contains(t, view, "BLOCKED (#2)")
	assert.Contains(t, view, "24:00:00")

	// Done keeps the blocked status
	m.Update(DoneMsg{})
	assert.Equal(t, "Blocked", m.Status())
}

func TestModelQuit(t *testing.T) {
	calls := 0
	m := newTestModel(func() { calls++ })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, 1, calls)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.Equal(t, 1, calls, "onQuit must only fire once")

	finished := newTestModel(func() { calls++ })
	finished.Update(DoneMsg{})
	finished.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Equal(t, 1, calls, "quitting after the run ends does not cancel")
}

func TestModelLogTail(t *testing.T) {
	m := newTestModel(nil)

	for i := 0; i < 60; i++ {
		m.Update(LogMsg{Level: "INFO", Message: "line"})
	}
	assert.Len(t, m.logMessages, 50)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, m.logMessages)
	assert.Contains(t, m.View(), "No logs yet")
}

func TestLogWriter(t *testing.T) {
	var got []LogMsg
	w := &logWriter{send: func(msg tea.Msg) { got = append(got, msg.(LogMsg)) }}

	_, _ = w.Write([]byte("14:30:00 INFO | Processing page component:deletion\n14:30:01 WA"))
	_, _ = w.Write([]byte("RN | Rate limit near\n"))
	_, _ = w.Write([]byte("14:30:02 ERRO | Block detected\n"))

	require.Len(t, got, 3)
	assert.Equal(t, LogMsg{Level: "INFO", Message: "Processing page component:deletion"}, got[0])
	assert.Equal(t, LogMsg{Level: "WARN", Message: "Rate limit near"}, got[1])
	assert.Equal(t, "ERROR", got[2].Level)
}

func TestParseLogLine(t *testing.T) {
	tests := []struct {
		line  string
		level string
		msg   string
		ok    bool
	}{
		{"14:30:00 DEBG | found 3 items", "DEBUG", "found 3 items", true},
		{"14:30:00 FATL | boom", "FATAL", "boom", true},
		{"plain text", "INFO", "plain text", true},
		{"   ", "", "", false},
	}

	for _, tt := range tests {
		msg, ok := parseLogLine(tt.line)
		if ok != tt.ok || msg.Level != tt.level || msg.Message != tt.msg {
			t.Errorf("parseLogLine(%q) = %+v, %v", tt.line, msg, ok)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{-time.Second, "00:00"},
		{90 * time.Second, "01:30"},
		{3*time.Hour + 5*time.Second, "03:00:05"},
	}

	for _, test := range tests {
		if got := formatDuration(test.d); got != test.expected {
			t.Errorf("formatDuration(%v) = %s, expected %s", test.d, got, test.expected)
		}
	}
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel(nil)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	assert.True(t, strings.Contains(m.View(), "Stop after the current item"))
}

var _ ui.Display = (*TUI)(nil)
