package deletion

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"fbcleanup/pkg/browser"
	errs "fbcleanup/pkg/errors"
	"fbcleanup/pkg/logger"
	"fbcleanup/pkg/ratelimit"
)

// Handler deletes one kind of item. Handlers are tried in order and the
// first whose CanHandle returns true is used.
type Handler interface {
	Name() string
	CanHandle(item Item) bool
	// Delete returns a success message, or an error classified with an
	// errors.Kind. Only Transient errors are retried.
	Delete(ctx context.Context, page browser.Page, item Item) (string, error)
}

// DefaultHandlers returns the post, comment and reaction handlers in that order
func DefaultHandlers(l logger.Logger) []Handler {
	return []Handler{
		NewPostHandler(l),
		NewCommentHandler(l),
		NewReactionHandler(l),
	}
}

const activityLogMarker = "allactivity"

var (
	confirmWaitSelectors = []string{
		`input[type="submit"][value*="Delete"]`,
		`input[type="submit"][value*="Confirm"]`,
		`button:has-text("Delete")`,
		`button:has-text("Confirm")`,
		`a:has-text("Confirm")`,
	}

	confirmClickSelectors = []string{
		`input[type="submit"][value*="Delete"]`,
		`input[type="submit"][value*="Confirm"]`,
		`button:has-text("Delete")`,
		`button:has-text("Confirm")`,
		`a:has-text("Confirm")`,
		`a:has-text("Delete")`,
		`input[type="submit"]`,
	}
)

var fold = cases.Fold()

func containsFold(s, substr string) bool {
	return strings.Contains(fold.String(s), fold.String(substr))
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if containsFold(s, n) {
			return true
		}
	}
	return false
}

// flow holds the click/confirm/navigate steps shared by every handler
type flow struct {
	logger logger.Logger
	pause  func(ctx context.Context) error
	settle time.Duration
}

func newFlow(l logger.Logger) flow {
	return flow{
		logger: logger.OrGlobal(l),
		pause: func(ctx context.Context) error {
			return ratelimit.MicroPause(ctx, 100*time.Millisecond, 300*time.Millisecond)
		},
		settle: time.Second,
	}
}

// classify marks page timeouts Transient and everything else Permanent
func classify(err error) error {
	if err == nil {
		return nil
	}
	if browser.IsTimeout(err) {
		return errs.NewTransient("", "Timeout", err)
	}
	return errs.NewPermanent("", "Error", err)
}

// findLink looks for a visible link, first on the item itself, then inside
// its element, then anywhere on the page.
func (f flow) findLink(ctx context.Context, page browser.Page, item Item, elementSelectors, pageSelectors []string) browser.Locator {
	if item.Link != nil {
		if ok, _ := item.Link.IsVisible(ctx); ok {
			return item.Link
		}
	}

	if item.Element != nil {
		for _, sel := range elementSelectors {
			link := item.Element.Locator(sel).First()
			if n, _ := link.Count(ctx); n == 0 {
				continue
			}
			if ok, _ := link.IsVisible(ctx); ok {
				return link
			}
		}
	}

	for _, sel := range pageSelectors {
		if link := firstVisible(ctx, page.Locator(sel)); link != nil {
			return link
		}
	}
	return nil
}

func firstVisible(ctx context.Context, loc browser.Locator) browser.Locator {
	all, err := loc.All(ctx)
	if err != nil {
		return nil
	}
	for _, l := range all {
		if ok, _ := l.IsVisible(ctx); ok {
			return l
		}
	}
	return nil
}

func (f flow) click(ctx context.Context, link browser.Locator) error {
	if err := f.pause(ctx); err != nil {
		return err
	}
	return classify(link.Click(ctx))
}

// waitForConfirmation reports whether the click led to a confirmation step
func (f flow) waitForConfirmation(ctx context.Context, page browser.Page) bool {
	if err := page.WaitForLoadState(ctx, browser.LoadStateNetworkIdle); err != nil {
		f.logger.WithError(err).Debug("no confirmation page")
		return false
	}

	if containsAny(page.URL(), "delete", "confirm", "remove") {
		return true
	}
	for _, sel := range confirmWaitSelectors {
		if n, _ := page.Locator(sel).Count(ctx); n > 0 {
			return true
		}
	}
	return false
}

func (f flow) clickConfirm(ctx context.Context, page browser.Page) bool {
	for _, sel := range confirmClickSelectors {
		btn := firstVisible(ctx, page.Locator(sel))
		if btn == nil {
			continue
		}
		if err := f.pause(ctx); err != nil {
			return false
		}
		if err := btn.Click(ctx); err != nil {
			f.logger.WithError(err).WithField("selector", sel).Debug("confirm click failed")
			continue
		}
		f.logger.WithField("selector", sel).Debug("clicked confirmation")
		return true
	}
	return false
}

// confirm clicks through an optional confirmation step
func (f flow) confirm(ctx context.Context, page browser.Page) error {
	if !f.waitForConfirmation(ctx, page) {
		return nil
	}
	if !f.clickConfirm(ctx, page) {
		return errs.NewPermanent("", "Could not click confirmation button", nil)
	}
	return nil
}

// waitForNavigation reports whether the page left the delete flow
func (f flow) waitForNavigation(ctx context.Context, page browser.Page) bool {
	if err := page.WaitForLoadState(ctx, browser.LoadStateNetworkIdle); err != nil {
		f.logger.WithError(err).Warn("timeout waiting for navigation")
		return false
	}

	url := page.URL()
	if containsFold(url, activityLogMarker) {
		return true
	}
	if containsAny(url, "delete", "confirm") {
		f.logger.WithField("url", url).Warn("still on a delete page after confirmation")
		return false
	}
	return true
}
