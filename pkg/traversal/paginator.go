package traversal

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fbcleanup/pkg/browser"
	"fbcleanup/pkg/logger"
)

// SeeMoreSelectors locate the link to the next page of a month, most
// specific first.
var SeeMoreSelectors = []string{
	`a:has-text("See More")`,
	`a:has-text("See more posts")`,
	`a:has-text("See more")`,
	`a[href*="allactivity"]:has-text("More")`,
	`a[href*="pagination"]`,
	`a[href*="next"]`,
	`a:has-text("more")`,
}

// Paginator follows "See More" links within one activity log listing
type Paginator struct {
	selectors []string
	logger    logger.Logger
}

func NewPaginator(l logger.Logger) *Paginator {
	return &Paginator{
		selectors: SeeMoreSelectors,
		logger:    logger.OrGlobal(l),
	}
}

func (p *Paginator) seeMore(ctx context.Context, page browser.Page) browser.Locator {
	for _, sel := range p.selectors {
		loc := page.Locator(sel)
		if n, err := loc.Count(ctx); err != nil || n == 0 {
			continue
		}
		first := loc.First()
		if ok, _ := first.IsVisible(ctx); ok {
			p.logger.WithField("selector", sel).Debug("found see more link")
			return first
		}
	}
	return nil
}

// HasMorePages reports whether a visible "See More" link exists
func (p *Paginator) HasMorePages(ctx context.Context, page browser.Page) bool {
	return p.seeMore(ctx, page) != nil
}

// ClickSeeMore follows the next-page link and waits for the load. When the
// click fails it navigates to the link's href instead.
func (p *Paginator) ClickSeeMore(ctx context.Context, page browser.Page) bool {
	link := p.seeMore(ctx, page)
	if link == nil {
		p.logger.Warn("could not find see more link to click")
		return false
	}

	from := page.URL()
	if err := link.Click(ctx); err != nil {
		p.logger.WithError(err).Warn("see more click failed, following href")
		href := p.nextHref(ctx, page)
		if href == "" {
			return false
		}
		if err := page.Goto(ctx, href); err != nil {
			p.logger.WithError(err).Error("could not open next page")
			return false
		}
	}

	if err := p.WaitForPageLoad(ctx, page); err != nil {
		p.logger.WithError(err).Error("timeout waiting for next page")
		return false
	}
	p.logger.InfoWithFields("loaded next page", map[string]interface{}{
		"from": from,
		"to":   page.URL(),
	})
	return true
}

// WaitForPageLoad waits for network idle, falling back to DOM ready
func (p *Paginator) WaitForPageLoad(ctx context.Context, page browser.Page) error {
	if err := page.WaitForLoadState(ctx, browser.LoadStateNetworkIdle); err == nil {
		return nil
	}
	if err := page.WaitForLoadState(ctx, browser.LoadStateDOMContentLoaded); err != nil {
		p.logger.WithError(err).Warn("page load timeout")
		return err
	}
	p.logger.Debug("page loaded to domcontentloaded")
	return nil
}

// nextHref finds the first "See More" style href in the page source
func (p *Paginator) nextHref(ctx context.Context, page browser.Page) string {
	html, err := page.Content(ctx)
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return NextPageHref(doc)
}

// NextPageHref returns the absolute URL of the next-page link in doc, or ""
func NextPageHref(doc *goquery.Document) string {
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h := a.AttrOr("href", "")
		text := strings.ToLower(strings.TrimSpace(a.Text()))
		if strings.HasPrefix(text, "see more") ||
			strings.Contains(h, "pagination") ||
			(strings.Contains(h, "allactivity") && strings.Contains(text, "more")) {
			href = h
			return false
		}
		return true
	})
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "/") {
		return MbasicBase + href
	}
	return href
}
