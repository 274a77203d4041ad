package tui

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"fbcleanup/pkg/ui"
)

// TUI runs the dashboard program and implements ui.Display
type TUI struct {
	program *tea.Program
	done    chan struct{}
	err     error
	once    sync.Once
}

// New creates a dashboard. onQuit is called when the user quits while
// the run is still going.
func New(onQuit func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(onQuit)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &TUI{
		program: tea.NewProgram(&model, opts...),
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background
func (t *TUI) Start() {
	go func() {
		defer close(t.done)
		_, t.err = t.program.Run()
	}()
}

// Wait blocks until the user quits and returns the program error
func (t *TUI) Wait() error {
	<-t.done
	return t.err
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Update pushes a progress snapshot
func (t *TUI) Update(p ui.Progress) {
	t.Send(ProgressMsg(p))
}

// Log adds a line to the log tail
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: strings.ToUpper(level), Message: fmt.Sprintf(format, args...)})
}

// Close marks the run finished. The dashboard stays up until the user
// quits so the final numbers can be read.
func (t *TUI) Close() {
	t.once.Do(func() { t.Send(DoneMsg{}) })
}

// Quit stops the program without waiting for the user
func (t *TUI) Quit() {
	t.program.Quit()
}

// LogWriter adapts console-formatted logger output into log tail entries.
// Pass it to logger.NewWithWriter with colour disabled.
func (t *TUI) LogWriter() io.Writer {
	return &logWriter{send: t.Send}
}

type logWriter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	send func(tea.Msg)
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	data := w.buf.Bytes()
	last := bytes.LastIndexByte(data, '\n')
	if last < 0 {
		return len(p), nil
	}

	sc := bufio.NewScanner(bytes.NewReader(data[:last+1]))
	for sc.Scan() {
		if msg, ok := parseLogLine(sc.Text()); ok {
			w.send(msg)
		}
	}
	rest := append([]byte(nil), data[last+1:]...)
	w.buf.Reset()
	w.buf.Write(rest)
	return len(p), nil
}

var levelNames = map[string]string{
	"DEBG": "DEBUG",
	"INFO": "INFO",
	"WARN": "WARN",
	"ERRO": "ERROR",
	"FATL": "FATAL",
}

// parseLogLine reads "15:04:05 INFO | message key:value" lines
func parseLogLine(line string) (LogMsg, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return LogMsg{}, false
	}
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 3 {
		return LogMsg{Level: "INFO", Message: line}, true
	}
	level, ok := levelNames[fields[1]]
	if !ok {
		return LogMsg{Level: "INFO", Message: line}, true
	}
	return LogMsg{Level: level, Message: strings.TrimPrefix(fields[2], "| ")}, true
}
