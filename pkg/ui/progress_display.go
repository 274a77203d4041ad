package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ConsoleDisplay prints one status line per page and colours log lines.
// In quiet mode only warnings and errors are printed.
type ConsoleDisplay struct {
	mu    sync.Mutex
	out   io.Writer
	quiet bool
	now   func() time.Time
	last  Progress
}

// NewConsoleDisplay writes to the package output
func NewConsoleDisplay(quiet bool) *ConsoleDisplay {
	return NewConsoleDisplayTo(out, quiet)
}

// NewConsoleDisplayTo writes to w
func NewConsoleDisplayTo(w io.Writer, quiet bool) *ConsoleDisplay {
	return &ConsoleDisplay{out: w, quiet: quiet, now: time.Now}
}

// Update prints the status line for p
func (d *ConsoleDisplay) Update(p Progress) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = p
	if d.quiet {
		return
	}

	line := fmt.Sprintf("%s %s • deleted %d • %.1f/h • window %s",
		Magenta("[CLEANING]"),
		Cyan(p.Position()),
		p.Deleted,
		p.Rate(d.now()),
		WindowBar(p.WindowUsed, p.WindowMax, 20),
	)
	if p.Failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.Failed))
	}
	if p.Blocked {
		line += " • " + Red(fmt.Sprintf("BLOCKED until %s", p.ResumeAt.Local().Format("Jan 2 15:04")))
	}
	fmt.Fprintln(d.out, line)
}

// Log prints a levelled message
func (d *ConsoleDisplay) Log(level, format string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	level = strings.ToUpper(level)
	msg := fmt.Sprintf(format, args...)
	switch level {
	case "ERROR":
		fmt.Fprintf(d.out, "%s %s\n", Red("✗"), Red(msg))
	case "WARN":
		fmt.Fprintf(d.out, "%s %s\n", Yellow("⚠"), Yellow(msg))
	case "SUCCESS":
		if !d.quiet {
			fmt.Fprintf(d.out, "%s %s\n", Green("✓"), msg)
		}
	default:
		if !d.quiet {
			fmt.Fprintf(d.out, "%s %s\n", Dim("•"), msg)
		}
	}
}

// Close prints the final totals
func (d *ConsoleDisplay) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.quiet || d.last.Started.IsZero() {
		return
	}
	fmt.Fprintf(d.out, "%s deleted %d • failed %d • skipped %d in %s\n",
		Green("✓"), d.last.Deleted, d.last.Failed, d.last.Skipped,
		FormatDuration(d.now().Sub(d.last.Started)))
}
