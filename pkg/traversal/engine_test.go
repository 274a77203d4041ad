package traversal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"fbcleanup/pkg/browser"
	"fbcleanup/pkg/logger"
	"fbcleanup/pkg/retry"
	"fbcleanup/pkg/state"
	"fbcleanup/pkg/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seeMore = `a:has-text("See More")`

type visitLog struct {
	pages []PageInfo
	stop  func(PageInfo) error
}

func (v *visitLog) visit(_ context.Context, info PageInfo) error {
	v.pages = append(v.pages, info)
	if v.stop != nil {
		return v.stop(info)
	}
	return nil
}

func (v *visitLog) months() []string {
	out := make([]string, 0, len(v.pages))
	for _, p := range v.pages {
		out = append(out, fmt.Sprintf("%d-%02d", p.Year, p.Month))
	}
	return out
}

func newTestEngine(t *testing.T, page browser.Page, opts Options) (*Engine, *logger.TestLogger) {
	t.Helper()
	log := logger.NewTestLogger()
	opts.Logger = log
	if opts.NavRetry == nil {
		opts.NavRetry = retry.Immediate(3)
	}
	e, err := NewEngine(page, "jdoe", opts)
	require.NoError(t, err)
	return e, log
}

func TestTraverseWalksNewestToOldest(t *testing.T) {
	page := browser.NewFakePage("about:blank")
	e, _ := newTestEngine(t, page, Options{TargetYear: 2021, StartYear: 2020, MinYear: 2019})

	v := &visitLog{}
	require.NoError(t, e.Traverse(context.Background(), v.visit))

	require.Len(t, v.pages, 24)
	assert.Equal(t, "2020-12", v.months()[0])
	assert.Equal(t, "2020-01", v.months()[11])
	assert.Equal(t, "2019-12", v.months()[12])
	assert.Equal(t, "2019-01", v.months()[23])

	for i := 1; i < len(v.pages); i++ {
		prev, cur := v.pages[i-1], v.pages[i]
		if cur.Year*100+cur.Month >= prev.Year*100+prev.Month {
			t.Errorf("page %d (%d-%02d) not older than previous (%d-%02d)", i, cur.Year, cur.Month, prev.Year, prev.Month)
		}
	}
	assert.Equal(t, "https://mbasic.facebook.com/jdoe/allactivity?log_filter=year_2020&month=12", page.Visited[0])
}

func TestTraverseFollowsPagination(t *testing.T) {
	page := browser.NewFakePage("about:blank")
	page.GotoFunc = func(p *browser.FakePage, url string) error {
		p.SetURL(url)
		if strings.HasSuffix(url, "month=12") {
			p.Set(seeMore, &browser.FakeElement{Text: "See More", OnClick: func(p *browser.FakePage) error {
				p.SetURL(url + "&cursor=2")
				p.Remove(seeMore)
				return nil
			}})
		} else {
			p.Remove(seeMore)
		}
		return nil
	}
	e, _ := newTestEngine(t, page, Options{StartYear: 2020, MinYear: 2020})

	v := &visitLog{}
	require.NoError(t, e.Traverse(context.Background(), v.visit))

	require.Len(t, v.pages, 13)
	assert.Equal(t, 1, v.pages[0].PageNumber)
	assert.False(t, v.pages[0].IsPagination)
	assert.Equal(t, 12, v.pages[1].Month)
	assert.Equal(t, 2, v.pages[1].PageNumber)
	assert.True(t, v.pages[1].IsPagination)
	assert.True(t, strings.HasSuffix(v.pages[1].URL, "&cursor=2"))
	assert.Equal(t, 11, v.pages[2].Month)
}

// A saved position of June 2019 starts the walk at June 2019; the year
// before starts again at December. The reporter seeded from the same state
// reports the saved total before any batch.
func TestResumeFromSavedPosition(t *testing.T) {
	saved := state.DefaultState(time.Now())
	saved.SetPosition(2019, 6, "https://mbasic.facebook.com/jdoe/allactivity?log_filter=year_2019&month=6")
	saved.TotalDeleted = 50

	page := browser.NewFakePage("about:blank")
	e, _ := newTestEngine(t, page, Options{TargetYear: 2021, StartYear: 2020, MinYear: 2018, Resume: saved})
	assert.LessOrEqual(t, e.StartYear(), 2019)

	reporter := stats.New()
	require.NoError(t, reporter.UpdateFromState(saved))
	assert.Equal(t, 50, reporter.Snapshot().TotalDeleted)

	v := &visitLog{}
	require.NoError(t, e.Traverse(context.Background(), v.visit))

	require.NotEmpty(t, v.pages)
	assert.Equal(t, "2019-06", v.months()[0])
	require.Len(t, v.pages, 6+12)
	assert.Equal(t, "2018-12", v.months()[6])
}

func TestResumeAfterStartYearIsIgnored(t *testing.T) {
	saved := state.DefaultState(time.Now())
	saved.SetPosition(2022, 3, "")

	page := browser.NewFakePage("about:blank")
	e, log := newTestEngine(t, page, Options{StartYear: 2020, MinYear: 2020, Resume: saved})
	assert.Equal(t, 2020, e.StartYear())
	assert.True(t, log.HasMessage("resume year is after start year"))

	v := &visitLog{}
	require.NoError(t, e.Traverse(context.Background(), v.visit))
	assert.Equal(t, "2020-12", v.months()[0])
}

func TestResumeWithoutMonthIsIgnored(t *testing.T) {
	saved := state.DefaultState(time.Now())
	y := 2015
	saved.CurrentYear = &y

	e, _ := newTestEngine(t, browser.NewFakePage("about:blank"), Options{StartYear: 2020, Resume: saved})
	assert.Equal(t, 2020, e.StartYear())
}

func TestTraverseSkipsUnreachableMonth(t *testing.T) {
	page := browser.NewFakePage("about:blank")
	page.GotoFunc = func(p *browser.FakePage, url string) error {
		if strings.HasSuffix(url, "month=11") {
			return browser.ErrTimeout
		}
		p.SetURL(url)
		return nil
	}
	e, log := newTestEngine(t, page, Options{StartYear: 2020, MinYear: 2020})

	v := &visitLog{}
	require.NoError(t, e.Traverse(context.Background(), v.visit))

	require.Len(t, v.pages, 11)
	assert.Equal(t, 12, v.pages[0].Month)
	assert.Equal(t, 10, v.pages[1].Month)
	assert.Equal(t, 3, countVisits(page, "month=11"))
	assert.True(t, log.HasMessage("error traversing month"))
}

func countVisits(page *browser.FakePage, suffix string) int {
	n := 0
	for _, u := range page.Visited {
		if strings.HasSuffix(u, suffix) {
			n++
		}
	}
	return n
}

func TestTraverseRetriesTimedOutNavigation(t *testing.T) {
	page := browser.NewFakePage("about:blank")
	failures := 0
	page.GotoFunc = func(p *browser.FakePage, url string) error {
		if strings.HasSuffix(url, "month=11") && failures < 2 {
			failures++
			return fmt.Errorf("goto: %w", browser.ErrTimeout)
		}
		p.SetURL(url)
		return nil
	}
	e, log := newTestEngine(t, page, Options{StartYear: 2020, MinYear: 2020})

	v := &visitLog{}
	require.NoError(t, e.Traverse(context.Background(), v.visit))

	require.Len(t, v.pages, 12)
	assert.Equal(t, 11, v.pages[1].Month)
	assert.Equal(t, 3, countVisits(page, "month=11"))
	assert.False(t, log.HasMessage("error traversing month"))
}

func TestTraverseDoesNotRetryPermanentNavigationFailure(t *testing.T) {
	page := browser.NewFakePage("about:blank")
	page.GotoFunc = func(p *browser.FakePage, url string) error {
		if strings.HasSuffix(url, "month=11") {
			return errors.New("net::ERR_NAME_NOT_RESOLVED")
		}
		p.SetURL(url)
		return nil
	}
	e, log := newTestEngine(t, page, Options{StartYear: 2020, MinYear: 2020})

	v := &visitLog{}
	require.NoError(t, e.Traverse(context.Background(), v.visit))

	assert.Len(t, v.pages, 11)
	assert.Equal(t, 1, countVisits(page, "month=11"))
	assert.True(t, log.HasMessage("error traversing month"))
}

func TestNavigationRetryDefaultsToExponentialBackoff(t *testing.T) {
	e, err := NewEngine(browser.NewFakePage("about:blank"), "jdoe", Options{Logger: logger.NewTestLogger()})
	require.NoError(t, err)

	assert.Equal(t, 3, e.navRetry.MaxAttempts)
	backoff, ok := e.navRetry.Backoff.(*retry.ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, backoff.BaseDelay)
	assert.Equal(t, 30*time.Second, backoff.MaxDelay)
	assert.True(t, e.navRetry.RetryIf(browser.ErrTimeout))
	assert.False(t, e.navRetry.RetryIf(context.Canceled))
}

func TestTraverseStopAndAbort(t *testing.T) {
	t.Run("ErrStop ends cleanly", func(t *testing.T) {
		e, _ := newTestEngine(t, browser.NewFakePage("about:blank"), Options{StartYear: 2020, MinYear: 2019})
		v := &visitLog{stop: func(info PageInfo) error {
			if info.Month == 10 {
				return ErrStop
			}
			return nil
		}}
		assert.NoError(t, e.Traverse(context.Background(), v.visit))
		assert.Len(t, v.pages, 3)
	})

	t.Run("visit error aborts", func(t *testing.T) {
		boom := errors.New("boom")
		e, _ := newTestEngine(t, browser.NewFakePage("about:blank"), Options{StartYear: 2020, MinYear: 2019})
		v := &visitLog{stop: func(PageInfo) error { return boom }}
		assert.ErrorIs(t, e.Traverse(context.Background(), v.visit), boom)
		assert.Len(t, v.pages, 1)
	})

	t.Run("cancelled context", func(t *testing.T) {
		e, _ := newTestEngine(t, browser.NewFakePage("about:blank"), Options{StartYear: 2020, MinYear: 2019})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		v := &visitLog{}
		assert.ErrorIs(t, e.Traverse(ctx, v.visit), context.Canceled)
		assert.Empty(t, v.pages)
	})
}

func TestTraverseCategory(t *testing.T) {
	page := browser.NewFakePage("about:blank")
	e, _ := newTestEngine(t, page, Options{StartYear: 2020, MinYear: 2019})

	v := &visitLog{}
	require.NoError(t, e.TraverseCategory(context.Background(), "cluster_11", 2019, 3, v.visit))
	require.Len(t, v.pages, 1)
	assert.Equal(t, "cluster_11", v.pages[0].Category)
	assert.Equal(t, "https://mbasic.facebook.com/jdoe/allactivity?log_filter=year_2019&month=3&log_filter=cluster_11", page.Visited[0])

	v = &visitLog{}
	require.NoError(t, e.TraverseCategory(context.Background(), "cluster_15", 2019, 0, v.visit))
	assert.Len(t, v.pages, 12)

	v = &visitLog{}
	require.NoError(t, e.TraverseCategory(context.Background(), "cluster_15", 0, 0, v.visit))
	assert.Len(t, v.pages, 24)
}

func TestTargetDate(t *testing.T) {
	e, _ := newTestEngine(t, browser.NewFakePage("about:blank"), Options{TargetYear: 2021})
	got := e.TargetDate()
	assert.Equal(t, 2021, got.Year())
	assert.Equal(t, time.January, got.Month())
	assert.Equal(t, 1, got.Day())
	assert.Equal(t, 2020, e.StartYear())
}

func TestNewEngineRequiresUsername(t *testing.T) {
	_, err := NewEngine(browser.NewFakePage("about:blank"), "", Options{})
	assert.ErrorIs(t, err, ErrEmptyUsername)
}
