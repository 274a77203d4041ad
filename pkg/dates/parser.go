package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"

	"fbcleanup/pkg/logger"
)

var months = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
	"jan":       time.January,
	"feb":       time.February,
	"mar":       time.March,
	"apr":       time.April,
	"jun":       time.June,
	"jul":       time.July,
	"aug":       time.August,
	"sep":       time.September,
	"sept":      time.September,
	"oct":       time.October,
	"nov":       time.November,
	"dec":       time.December,
}

var (
	relativeRe     = regexp.MustCompile(`(\d+)\s+(year|month|week|day|hour)s?\s+ago`)
	timeOfDayRe    = regexp.MustCompile(`at\s+(\d{1,2}):(\d{2})\s*(am|pm)`)
	monthDayYearRe = regexp.MustCompile(`^(\w+)\s+(\d+),\s*(\d{4})`)
	monthDayRe     = regexp.MustCompile(`^(\w+)\s+(\d+)`)
)

// Parser turns the fuzzy timestamps shown in the Activity Log ("2 years
// ago", "November 3 at 4:00pm", "Mar 5, 2019") into times.
type Parser struct {
	Location *time.Location
	logger   logger.Logger
}

// NewParser returns a parser for the local time zone
func NewParser() *Parser {
	return &Parser{Location: time.Local, logger: logger.GetLogger()}
}

// WithLogger sets the logger
func (p *Parser) WithLogger(l logger.Logger) *Parser {
	p.logger = logger.OrGlobal(l)
	return p
}

// Parse interprets s relative to ref. It tries, in order, today/yesterday,
// "N units ago", "Month D[, YYYY]" and finally dateparse. Yearless dates
// that land after ref are moved back a year.
func (p *Parser) Parse(s string, ref time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		p.log().Debug("empty date string")
		return time.Time{}, false
	}
	if ref.IsZero() {
		ref = time.Now().In(p.location())
	}
	lower := cases.Fold().String(s)

	if t, ok := parseRelative(lower, ref); ok {
		return t, true
	}
	if t, ok := p.parseAbsolute(s, lower, ref); ok {
		return t, true
	}

	p.log().WarnWithFields("could not parse date string", map[string]interface{}{"date": s})
	return time.Time{}, false
}

// IsBefore reports whether s parses to a time strictly before target.
// Unparseable strings are not before anything.
func (p *Parser) IsBefore(s string, target, ref time.Time) bool {
	t, ok := p.Parse(s, ref)
	if !ok {
		return false
	}
	return t.Before(target)
}

func (p *Parser) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func (p *Parser) log() logger.Logger {
	return logger.OrGlobal(p.logger)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func parseRelative(lower string, ref time.Time) (time.Time, bool) {
	switch lower {
	case "today":
		return midnight(ref), true
	case "yesterday":
		return midnight(ref.AddDate(0, 0, -1)), true
	}

	m := relativeRe.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}

	var delta time.Duration
	day := 24 * time.Hour
	switch m[2] {
	case "year":
		delta = time.Duration(n) * 365 * day
	case "month":
		delta = time.Duration(n) * 30 * day
	case "week":
		delta = time.Duration(n) * 7 * day
	case "day":
		delta = time.Duration(n) * day
	case "hour":
		delta = time.Duration(n) * time.Hour
	}

	t := ref.Add(-delta)
	if hour, minute, ok := timeOfDay(lower); ok {
		t = time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
	}
	return t, true
}

// timeOfDay extracts "at h:mm am|pm" as 24-hour clock values
func timeOfDay(lower string) (hour, minute int, ok bool) {
	m := timeOfDayRe.FindStringSubmatch(lower)
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	switch {
	case m[3] == "pm" && hour != 12:
		hour += 12
	case m[3] == "am" && hour == 12:
		hour = 0
	}
	return hour, minute, true
}

func withTimeOfDay(t time.Time, lower string) time.Time {
	if hour, minute, ok := timeOfDay(lower); ok {
		return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
	}
	return t
}

func (p *Parser) parseAbsolute(original, lower string, ref time.Time) (time.Time, bool) {
	datePart := lower
	if loc := timeOfDayRe.FindStringIndex(lower); loc != nil {
		datePart = strings.TrimSpace(lower[:loc[0]])
	}

	if t, ok := parseMonthDay(datePart, ref); ok {
		return withTimeOfDay(t, lower), true
	}

	t, err := dateparse.ParseIn(original, p.location())
	if err != nil {
		p.log().DebugWithFields("dateparse failed", map[string]interface{}{
			"date":  original,
			"error": err.Error(),
		})
		return time.Time{}, false
	}
	if t.Year() == ref.Year() && t.After(ref) {
		t = t.AddDate(-1, 0, 0)
	}
	return withTimeOfDay(t, lower), true
}

func validDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func parseMonthDay(s string, ref time.Time) (time.Time, bool) {
	if m := monthDayYearRe.FindStringSubmatch(s); m != nil {
		if month, ok := months[m[1]]; ok {
			day, _ := strconv.Atoi(m[2])
			year, _ := strconv.Atoi(m[3])
			if t, ok := validDate(year, month, day, ref.Location()); ok {
				return t, true
			}
		}
	}

	if m := monthDayRe.FindStringSubmatch(s); m != nil {
		if month, ok := months[m[1]]; ok {
			day, _ := strconv.Atoi(m[2])
			if t, ok := validDate(ref.Year(), month, day, ref.Location()); ok {
				if t.After(ref) {
					t = t.AddDate(-1, 0, 0)
				}
				return t, true
			}
		}
	}
	return time.Time{}, false
}
