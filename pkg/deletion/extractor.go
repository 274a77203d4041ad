package deletion

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"fbcleanup/pkg/browser"
	"fbcleanup/pkg/dates"
	"fbcleanup/pkg/logger"
)

// ItemExtractor finds deletable items on the current page
type ItemExtractor interface {
	Extract(ctx context.Context, page browser.Page) ([]Item, error)
}

var containerSelectors = []string{
	`div[role="article"]`,
	`article`,
	`div[id*="story"]`,
	`div[class*="story"]`,
}

var dateSelectors = []string{
	`abbr[title]`,
	`abbr`,
	`time`,
	`span[title*="20"]`,
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:,\s*\d{4})?`),
	regexp.MustCompile(`(?i)\d{1,2}\s+(?:years?|months?|days?|hours?)\s+ago`),
	regexp.MustCompile(`(?i)\b(?:Today|Yesterday)\b`),
}

var (
	reactionIndicators = []string{"liked", "reacted", "unlike", "remove reaction"}
	commentIndicators  = []string{"commented", "comment", "view context"}
	postIndicators     = []string{"posted", "shared", "created a post"}
)

// linkRule matches an element by tag plus a text or href substring
type linkRule struct {
	css  string
	text string
	href string
}

var deleteLinkRules = []linkRule{
	{css: "a", text: "delete"},
	{css: "a", text: "remove"},
	{css: "a", text: "unlike"},
	{css: "a", text: "remove reaction"},
	{css: "a", href: "delete"},
	{css: "a", href: "remove"},
	{css: "a", href: "unlike"},
	{css: "button", text: "delete"},
}

var hrefIDRe = regexp.MustCompile(`[?&]id=(\d+)`)

// Extractor parses the activity log HTML with goquery and keeps the items
// dated before the target cutoff.
type Extractor struct {
	target time.Time
	parser *dates.Parser
	now    func() time.Time
	logger logger.Logger
}

// NewExtractor returns an extractor that keeps items older than target
func NewExtractor(target time.Time, l logger.Logger) *Extractor {
	l = logger.OrGlobal(l)
	return &Extractor{
		target: target,
		parser: dates.NewParser().WithLogger(l),
		now:    time.Now,
		logger: l,
	}
}

// WithClock sets the reference time for relative dates
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// Target returns the cutoff date
func (e *Extractor) Target() time.Time { return e.target }

func (e *Extractor) Extract(ctx context.Context, page browser.Page) ([]Item, error) {
	if err := page.WaitForLoadState(ctx, browser.LoadStateDOMContentLoaded); err != nil {
		e.logger.WithError(err).Debug("page not fully loaded, extracting anyway")
	}

	html, err := page.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page content: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page content: %w", err)
	}

	var containerSel string
	var containers *goquery.Selection
	for _, sel := range containerSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			containerSel, containers = sel, found
			break
		}
	}
	if containers == nil {
		e.logger.WithField("url", page.URL()).Debug("no activity items on page")
		return nil, nil
	}

	ref := e.now()
	var items []Item
	skipped := 0
	containers.Each(func(i int, s *goquery.Selection) {
		item, ok := e.parseContainer(page, containerSel, i, s, ref)
		if !ok {
			skipped++
			return
		}
		items = append(items, item)
	})

	e.logger.DebugWithFields("extracted items", map[string]interface{}{
		"containers": containers.Length(),
		"items":      len(items),
		"skipped":    skipped,
		"selector":   containerSel,
	})
	return items, nil
}

func (e *Extractor) parseContainer(page browser.Page, containerSel string, i int, s *goquery.Selection, ref time.Time) (Item, bool) {
	text := s.Text()
	link, href := findDeleteLink(s)
	kind := detectKind(text, link != nil)
	if kind == "" {
		return Item{}, false
	}
	if link == nil && kind != KindReaction {
		return Item{}, false
	}

	item := Item{
		Kind:       kind,
		DateString: extractDate(s),
		Href:       href,
		NaturalID:  naturalID(s, href),
	}

	if item.DateString != "" {
		if parsed, ok := e.parser.Parse(item.DateString, ref); ok {
			if !parsed.Before(e.target) {
				return Item{}, false
			}
			item.ParsedDate = &parsed
		}
	}

	if id, ok := s.Attr("id"); ok && id != "" {
		item.Element = page.Locator(fmt.Sprintf(`[id="%s"]`, quoteAttr(id)))
	} else {
		item.Element = page.Locator(containerSel).Nth(i)
	}

	switch {
	case href != "":
		item.Link = page.Locator(fmt.Sprintf(`a[href="%s"]`, quoteAttr(href))).First()
	case link != nil:
		item.Link = item.Element.Locator(`button:has-text("Delete")`).First()
	}
	return item, true
}

func findDeleteLink(s *goquery.Selection) (*goquery.Selection, string) {
	for _, r := range deleteLinkRules {
		rule := r
		match := s.Find(rule.css).FilterFunction(func(_ int, el *goquery.Selection) bool {
			if rule.text != "" && !containsFold(el.Text(), rule.text) {
				return false
			}
			if rule.href != "" && !containsFold(el.AttrOr("href", ""), rule.href) {
				return false
			}
			return true
		}).First()
		if match.Length() > 0 {
			return match, match.AttrOr("href", "")
		}
	}
	return nil, ""
}

func detectKind(text string, hasLink bool) Kind {
	switch {
	case containsAny(text, reactionIndicators...):
		return KindReaction
	case containsAny(text, commentIndicators...):
		return KindComment
	case containsAny(text, postIndicators...):
		return KindPost
	case hasLink:
		return KindPost
	}
	return ""
}

func extractDate(s *goquery.Selection) string {
	for _, sel := range dateSelectors {
		el := s.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if title := strings.TrimSpace(el.AttrOr("title", "")); title != "" {
			return title
		}
		if txt := strings.TrimSpace(el.Text()); txt != "" {
			return txt
		}
	}

	text := s.Text()
	for _, re := range datePatterns {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

func naturalID(s *goquery.Selection, href string) string {
	if id := s.AttrOr("id", ""); id != "" {
		return id
	}
	if id := s.AttrOr("data-id", ""); id != "" {
		return id
	}
	if m := hrefIDRe.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return ""
}

func quoteAttr(v string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v)
}
