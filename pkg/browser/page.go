package browser

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// LoadState names a page lifecycle milestone to wait for
type LoadState string

const (
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateLoad             LoadState = "load"
	LoadStateNetworkIdle      LoadState = "networkidle"
)

// Page is the browser capability the deletion and traversal code is written
// against. ChromePage implements it over chromedp; FakePage backs tests.
type Page interface {
	Goto(ctx context.Context, url string) error
	Content(ctx context.Context) (string, error)
	URL() string
	Locator(selector string) Locator
	WaitForLoadState(ctx context.Context, state LoadState) error
}

// Locator addresses zero or more elements. Selectors are CSS with an
// optional :has-text("...") suffix matching a case-insensitive substring
// of the element text.
type Locator interface {
	Count(ctx context.Context) (int, error)
	First() Locator
	Nth(i int) Locator
	All(ctx context.Context) ([]Locator, error)
	IsVisible(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	Check(ctx context.Context) error
	// GetAttribute returns "" when the element or attribute is missing
	GetAttribute(ctx context.Context, name string) (string, error)
	TextContent(ctx context.Context) (string, error)
	Locator(selector string) Locator
}

// Cookie is a session cookie installed before the first navigation
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  float64
	HTTPOnly bool
	Secure   bool
	SameSite string
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// ErrTimeout is wrapped by every page operation that runs out of time.
// It reports Timeout() so error classification treats it as transient.
var ErrTimeout error = timeoutError{}

// ErrNotFound is returned when an action targets a locator with no match
var ErrNotFound = errors.New("element not found")

// IsTimeout reports whether err came from a page timeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

var hasTextRe = regexp.MustCompile(`^(.*?):has-text\((?:"([^"]*)"|'([^']*)')\)\s*$`)

// step is one link in a locator chain
type step struct {
	CSS  string `json:"css"`
	Text string `json:"text,omitempty"`
	Nth  int    `json:"nth"`
}

// parseSelector splits a selector into its CSS part and :has-text filter
func parseSelector(sel string) step {
	sel = strings.TrimSpace(sel)
	m := hasTextRe.FindStringSubmatch(sel)
	if m == nil {
		return step{CSS: sel, Nth: -1}
	}
	css := strings.TrimSpace(m[1])
	if css == "" {
		css = "*"
	}
	text := m[2]
	if text == "" {
		text = m[3]
	}
	return step{CSS: css, Text: strings.ToLower(text), Nth: -1}
}
