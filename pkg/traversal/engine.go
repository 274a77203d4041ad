package traversal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fbcleanup/pkg/browser"
	"fbcleanup/pkg/logger"
	"fbcleanup/pkg/retry"
	"fbcleanup/pkg/state"
)

// ErrStop may be returned by a VisitFunc to end the walk without error
var ErrStop = errors.New("traversal stopped")

// PageInfo describes one visited activity log page
type PageInfo struct {
	Year         int
	Month        int
	Category     string
	URL          string
	IsPagination bool
	PageNumber   int
	Page         browser.Page
}

// VisitFunc is called for every page in walk order
type VisitFunc func(ctx context.Context, info PageInfo) error

// Options configure an Engine. Zero values fall back to the defaults.
type Options struct {
	TargetYear int
	StartYear  int
	MinYear    int
	Resume     *state.ProgressState
	Paginator  *Paginator
	// NavRetry governs repeated attempts to open a month; nil means
	// retry.DefaultConfig, which only repeats transient failures
	NavRetry *retry.Config
	Logger   logger.Logger
}

// Engine walks the activity log from the newest eligible month back to
// MinYear, one page at a time.
type Engine struct {
	page        browser.Page
	urls        *URLBuilder
	pager       *Paginator
	targetYear  int
	startYear   int
	minYear     int
	resumeYear  int
	resumeMonth int
	navRetry    retry.Config
	logger      logger.Logger
}

// navError marks a failure to reach a month, which skips that month
type navError struct {
	url string
	err error
}

func (e *navError) Error() string { return fmt.Sprintf("navigate to %s: %v", e.url, e.err) }
func (e *navError) Unwrap() error { return e.err }

func NewEngine(page browser.Page, username string, opts Options) (*Engine, error) {
	urls, err := NewURLBuilder(username)
	if err != nil {
		return nil, err
	}

	l := logger.OrGlobal(opts.Logger)
	e := &Engine{
		page:       page,
		urls:       urls,
		pager:      opts.Paginator,
		targetYear: opts.TargetYear,
		startYear:  opts.StartYear,
		minYear:    opts.MinYear,
		logger:     l,
	}
	if e.pager == nil {
		e.pager = NewPaginator(l)
	}
	if opts.NavRetry != nil {
		e.navRetry = *opts.NavRetry
	} else {
		e.navRetry = *retry.DefaultConfig()
		e.navRetry.Logger = l
	}
	if e.targetYear == 0 {
		e.targetYear = 2021
	}
	if e.startYear == 0 {
		e.startYear = e.targetYear - 1
	}
	if e.minYear == 0 {
		e.minYear = MinSupportedYear
	}

	if opts.Resume != nil {
		e.applyResume(opts.Resume)
	}

	l.InfoWithFields("traversal engine initialized", map[string]interface{}{
		"username":    urls.Username(),
		"start_year":  e.startYear,
		"target_year": e.targetYear,
		"min_year":    e.minYear,
	})
	return e, nil
}

func (e *Engine) applyResume(s *state.ProgressState) {
	year, month, ok := s.Position()
	if !ok || year == 0 || month == 0 {
		return
	}

	e.resumeYear, e.resumeMonth = year, month
	if year <= e.startYear {
		e.startYear = year
		e.logger.Info(fmt.Sprintf("resuming from %d-%02d", year, month))
		return
	}
	e.logger.WarnWithFields("resume year is after start year, starting from configured start year", map[string]interface{}{
		"resume_year": year,
		"start_year":  e.startYear,
	})
}

// StartYear returns the first year walked, after resume adjustment
func (e *Engine) StartYear() int { return e.startYear }

// TargetDate is January 1 of the target year
func (e *Engine) TargetDate() time.Time {
	return time.Date(e.targetYear, time.January, 1, 0, 0, 0, 0, time.Local)
}

// Traverse visits every page from StartYear down to MinYear, December to
// January within each year. The resume month only applies to the resume
// year. A month that cannot be opened is logged and skipped. A visit
// returning ErrStop ends the walk with nil; any other visit error is
// returned as is.
func (e *Engine) Traverse(ctx context.Context, visit VisitFunc) error {
	e.logger.Info(fmt.Sprintf("starting year traversal: %d -> %d", e.startYear, e.minYear))

	for year := e.startYear; year >= e.minYear; year-- {
		first := 12
		if year == e.resumeYear && e.resumeMonth > 0 {
			first = e.resumeMonth
		}
		e.logger.WithField("year", year).Info("processing year")

		for month := first; month >= 1; month-- {
			if err := e.walk(ctx, year, month, "", visit); err != nil {
				if done, err := e.settle(ctx, err); done {
					return err
				}
			}
		}
	}
	return nil
}

// TraverseCategory walks one category. A zero year walks every year from
// StartYear down; a zero month walks all twelve months.
func (e *Engine) TraverseCategory(ctx context.Context, category string, year, month int, visit VisitFunc) error {
	years := []int{year}
	if year == 0 {
		years = years[:0]
		for y := e.startYear; y >= e.minYear; y-- {
			years = append(years, y)
		}
	}

	for _, y := range years {
		months := []int{month}
		if month == 0 {
			months = []int{12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
		}
		for _, m := range months {
			if err := e.walk(ctx, y, m, category, visit); err != nil {
				if done, err := e.settle(ctx, err); done {
					return err
				}
			}
		}
	}
	return nil
}

// settle decides whether a page error ends the walk
func (e *Engine) settle(ctx context.Context, err error) (bool, error) {
	if errors.Is(err, ErrStop) {
		e.logger.Info("traversal stopped")
		return true, nil
	}
	if ctx.Err() != nil {
		return true, ctx.Err()
	}
	var ne *navError
	if errors.As(err, &ne) {
		e.logger.WithError(ne.err).WithField("url", ne.url).Error("error traversing month, continuing")
		return false, nil
	}
	return true, err
}

// walk opens one month and follows its pagination
func (e *Engine) walk(ctx context.Context, year, month int, category string, visit VisitFunc) error {
	url, err := e.urls.ActivityLogURL(year, month, category)
	if err != nil {
		return &navError{url: fmt.Sprintf("%d-%02d", year, month), err: err}
	}

	e.logger.WithField("url", url).Info("navigating")
	if err := e.gotoWithRetry(ctx, url); err != nil {
		return &navError{url: url, err: err}
	}
	if err := e.pager.WaitForPageLoad(ctx, e.page); err != nil {
		return &navError{url: url, err: err}
	}

	info := PageInfo{
		Year:       year,
		Month:      month,
		Category:   category,
		URL:        e.page.URL(),
		PageNumber: 1,
		Page:       e.page,
	}
	if err := visit(ctx, info); err != nil {
		return err
	}

	for e.pager.HasMorePages(ctx, e.page) {
		if err := ctx.Err(); err != nil {
			return err
		}
		info.PageNumber++
		e.logger.WithField("page", info.PageNumber).Info("following see more")
		if !e.pager.ClickSeeMore(ctx, e.page) {
			e.logger.Warn("failed to open next page, stopping pagination")
			break
		}

		info.URL = e.page.URL()
		info.IsPagination = true
		if err := visit(ctx, info); err != nil {
			return err
		}
	}
	return nil
}

// gotoWithRetry repeats a navigation that timed out; any other failure is
// returned on the first attempt
func (e *Engine) gotoWithRetry(ctx context.Context, url string) error {
	cfg := e.navRetry
	cfg.Context = ctx
	return retry.Do(func(int) error {
		return e.page.Goto(ctx, url)
	}, &cfg)
}
