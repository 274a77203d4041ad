package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// Progress is a point-in-time view of a run, pushed to a Display after
// every page.
type Progress struct {
	Year       int
	Month      int
	Page       int
	URL        string
	Deleted    int
	Failed     int
	Skipped    int
	Errors     int
	WindowUsed int
	WindowMax  int
	Blocked    bool
	BlockCount int
	ResumeAt   time.Time
	Started    time.Time
}

// Position renders year/month/page, or "-" before the first page
func (p Progress) Position() string {
	if p.Year == 0 {
		return "-"
	}
	pos := fmt.Sprintf("%d-%02d", p.Year, p.Month)
	if p.Page > 1 {
		pos += fmt.Sprintf(" p%d", p.Page)
	}
	return pos
}

// WindowUsage is the hourly window utilisation in percent
func (p Progress) WindowUsage() float64 {
	if p.WindowMax <= 0 {
		return 0
	}
	return float64(p.WindowUsed) / float64(p.WindowMax) * 100
}

// Rate is deletions per hour since Started
func (p Progress) Rate(now time.Time) float64 {
	hours := now.Sub(p.Started).Hours()
	if hours < 0.01 {
		hours = 0.01
	}
	return float64(p.Deleted) / hours
}

// Display receives run progress. ConsoleDisplay prints status lines; the
// tui package renders a dashboard.
type Display interface {
	Update(p Progress)
	Log(level, format string, args ...interface{})
	Close()
}

// WindowBar renders used/max as a fixed-width bar
func WindowBar(used, max, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := 0
	if max > 0 {
		filled = used * width / max
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, width-filled),
		used, max)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
