package traversal

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// MbasicBase is the basic mobile web origin
const MbasicBase = "https://mbasic.facebook.com"

// Activity log bounds. Facebook launched in 2004.
const (
	MinSupportedYear = 2004
	MaxSupportedYear = 2030
)

var ErrEmptyUsername = errors.New("username cannot be empty")

var usernameRe = regexp.MustCompile(`mbasic\.facebook\.com/([^/?#]+)/`)

// URLBuilder builds Activity Log URLs for one account
type URLBuilder struct {
	username string
	base     string
}

func NewURLBuilder(username string) (*URLBuilder, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	return &URLBuilder{
		username: username,
		base:     fmt.Sprintf("%s/%s/allactivity", MbasicBase, url.PathEscape(username)),
	}, nil
}

func (b *URLBuilder) Username() string { return b.username }

// ActivityLogURL builds the filtered log URL. A zero month or empty
// category leaves that filter out. Parameters keep the order year, month,
// category, so url.Values (which sorts by key) is not used.
func (b *URLBuilder) ActivityLogURL(year, month int, category string) (string, error) {
	if year < MinSupportedYear || year > MaxSupportedYear {
		return "", fmt.Errorf("year must be between %d and %d, got %d", MinSupportedYear, MaxSupportedYear, year)
	}

	var q queryBuilder
	q.add("log_filter", "year_"+strconv.Itoa(year))
	if month != 0 {
		if month < 1 || month > 12 {
			return "", fmt.Errorf("month must be between 1 and 12, got %d", month)
		}
		q.add("month", strconv.Itoa(month))
	}
	if category != "" {
		q.add("log_filter", category)
	}
	return b.base + "?" + q.String(), nil
}

func (b *URLBuilder) YearURL(year int) (string, error) {
	return b.ActivityLogURL(year, 0, "")
}

func (b *URLBuilder) MonthURL(year, month int) (string, error) {
	return b.ActivityLogURL(year, month, "")
}

func (b *URLBuilder) CategoryURL(year int, category string, month int) (string, error) {
	return b.ActivityLogURL(year, month, category)
}

// queryBuilder is an escaped query string that keeps insertion order
type queryBuilder struct {
	parts []string
}

func (q *queryBuilder) add(key, value string) {
	q.parts = append(q.parts, url.QueryEscape(key)+"="+url.QueryEscape(value))
}

func (q *queryBuilder) String() string { return strings.Join(q.parts, "&") }

// UsernameFromURL recovers the account name from a saved activity log URL
func UsernameFromURL(u string) string {
	m := usernameRe.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	if name, err := url.PathUnescape(m[1]); err == nil {
		return name
	}
	return m[1]
}
