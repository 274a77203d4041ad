package safety

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"fbcleanup/pkg/browser"
	"fbcleanup/pkg/logger"
)

// DefaultIndicators are page phrases the platform shows when it throttles
// or blocks an action.
var DefaultIndicators = []string{
	"You're going too fast",
	"This feature is temporarily blocked",
	"Action Blocked",
	"Too many requests",
	"Please slow down",
	"Temporarily unavailable",
	"Try again later",
	"Something went wrong",
	"We're having trouble",
	"Unable to complete",
}

var errorURLPatterns = []string{
	"error",
	"blocked",
	"unavailable",
	"restricted",
	"checkpoint",
	"security",
}

// ErrorDetector is a stateless classifier over a page's URL and content
type ErrorDetector struct {
	indicators []string
	folded     []string
	logger     logger.Logger
}

// NewErrorDetector returns a detector using DefaultIndicators plus extra
func NewErrorDetector(extra ...string) *ErrorDetector {
	d := &ErrorDetector{logger: logger.GetLogger()}
	d.indicators = append(append(d.indicators, DefaultIndicators...), extra...)
	fold := cases.Fold()
	for _, ind := range d.indicators {
		d.folded = append(d.folded, fold.String(ind))
	}
	return d
}

// WithLogger sets the logger used for detections
func (d *ErrorDetector) WithLogger(l logger.Logger) *ErrorDetector {
	d.logger = logger.OrGlobal(l)
	return d
}

// Indicators returns the phrase list in match order
func (d *ErrorDetector) Indicators() []string {
	return append([]string(nil), d.indicators...)
}

// CheckURLForErrors reports whether url carries an error or checkpoint marker
func (d *ErrorDetector) CheckURLForErrors(url string) bool {
	lower := cases.Fold().String(url)
	for _, pattern := range errorURLPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// CheckForErrors checks the URL first, then the rendered content. A content
// read failure is reported as no error.
func (d *ErrorDetector) CheckForErrors(ctx context.Context, page browser.Page) (bool, string) {
	url := page.URL()
	if d.CheckURLForErrors(url) {
		d.logger.WarnWithFields("error detected in URL", map[string]interface{}{"url": url})
		return true, fmt.Sprintf("Error URL detected: %s", url)
	}

	content, err := page.Content(ctx)
	if err != nil {
		d.logger.DebugWithFields("could not read page content", map[string]interface{}{"error": err.Error()})
		return false, ""
	}

	folded := cases.Fold().String(content)
	for i, ind := range d.folded {
		if strings.Contains(folded, ind) {
			d.logger.WarnWithFields("error detected in page content", map[string]interface{}{
				"indicator": d.indicators[i],
			})
			return true, fmt.Sprintf("Error message detected: '%s'", d.indicators[i])
		}
	}
	return false, ""
}
