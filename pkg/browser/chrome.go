package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"fbcleanup/pkg/config"
	"fbcleanup/pkg/logger"
)

const (
	defaultNavigationTimeout = 30 * time.Second
	defaultActionTimeout     = 10 * time.Second
	pollInterval             = 100 * time.Millisecond
	networkIdleQuiet         = 500 * time.Millisecond
)

// Options configures a ChromePage
type Options struct {
	Browser           config.BrowserConfig
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	Cookies           []Cookie
	Logger            logger.Logger
}

// ChromePage drives a single Chrome tab through the DevTools protocol
type ChromePage struct {
	tab     context.Context
	cancel  context.CancelFunc
	navWait time.Duration
	actWait time.Duration
	logger  logger.Logger

	mu  sync.Mutex
	url string
}

// Launch starts Chrome with mobile stealth settings, installs the session
// cookies and returns the page. Close releases the browser.
func Launch(ctx context.Context, opts Options) (*ChromePage, error) {
	log := logger.OrGlobal(opts.Logger).WithField("component", "browser")
	bc := opts.Browser

	alloc := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", bc.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(bc.ViewportWidth, bc.ViewportHeight),
		chromedp.UserAgent(bc.UserAgent),
	)
	if bc.BlockImages {
		alloc = append(alloc, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	if bc.Locale != "" {
		alloc = append(alloc, chromedp.Flag("lang", bc.Locale))
	}
	if bc.ExecPath != "" {
		alloc = append(alloc, chromedp.ExecPath(bc.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, alloc...)
	tab, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
	)

	p := &ChromePage{
		tab: tab,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
		navWait: opts.NavigationTimeout,
		actWait: opts.ActionTimeout,
		logger:  log,
	}
	if p.navWait <= 0 {
		p.navWait = defaultNavigationTimeout
	}
	if p.actWait <= 0 {
		p.actWait = defaultActionTimeout
	}

	setup := []chromedp.Action{
		chromedp.EmulateViewport(int64(bc.ViewportWidth), int64(bc.ViewportHeight), chromedp.EmulateMobile),
		network.Enable(),
		setCookies(opts.Cookies),
	}
	if bc.Locale != "" {
		setup = append(setup, emulation.SetLocaleOverride().WithLocale(bc.Locale))
	}
	if bc.Timezone != "" {
		setup = append(setup, emulation.SetTimezoneOverride(bc.Timezone))
	}

	if err := chromedp.Run(tab, setup...); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.InfoWithFields("browser launched", map[string]interface{}{
		"headless": bc.Headless,
		"viewport": fmt.Sprintf("%dx%d", bc.ViewportWidth, bc.ViewportHeight),
		"cookies":  len(opts.Cookies),
	})
	return p, nil
}

func setCookies(cookies []Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			path := c.Path
			if path == "" {
				path = "/"
			}
			params := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if c.Expires > 0 {
				sec := int64(c.Expires)
				exp := cdp.TimeSinceEpoch(time.Unix(sec, 0))
				params = params.WithExpires(&exp)
			}
			switch strings.ToLower(c.SameSite) {
			case "strict":
				params = params.WithSameSite(network.CookieSameSiteStrict)
			case "lax":
				params = params.WithSameSite(network.CookieSameSiteLax)
			case "none":
				params = params.WithSameSite(network.CookieSameSiteNone)
			}
			if err := params.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

// Close shuts the tab and the browser process
func (p *ChromePage) Close() {
	if p.cancel != nil {
		p.cancel()
	}
}

// run executes actions on the tab, bounded by timeout and by ctx
func (p *ChromePage) run(ctx context.Context, timeout time.Duration, op string, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(p.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(tctx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (p *ChromePage) Goto(ctx context.Context, url string) error {
	p.logger.DebugWithFields("navigating", map[string]interface{}{"url": url})
	if err := p.run(ctx, p.navWait, "goto "+url, chromedp.Navigate(url)); err != nil {
		return err
	}
	p.refreshURL(ctx)
	return nil
}

func (p *ChromePage) Content(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, p.actWait, "content", chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// URL returns the tab's current location, falling back to the last known one
func (p *ChromePage) URL() string {
	p.refreshURL(context.Background())
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *ChromePage) refreshURL(ctx context.Context) {
	var loc string
	if err := p.run(ctx, 2*time.Second, "location", chromedp.Location(&loc)); err != nil {
		return
	}
	p.mu.Lock()
	p.url = loc
	p.mu.Unlock()
}

// WaitForLoadState polls document.readyState. networkidle additionally
// waits a short quiet period after the load event.
func (p *ChromePage) WaitForLoadState(ctx context.Context, state LoadState) error {
	want := "complete"
	if state == LoadStateDOMContentLoaded {
		want = "interactive"
	}

	deadline := time.Now().Add(p.navWait)
	for {
		var ready string
		if err := p.run(ctx, p.actWait, "readyState", chromedp.Evaluate(`document.readyState`, &ready)); err != nil {
			return err
		}
		if ready == "complete" || ready == want {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("wait for %s: %w", state, ErrTimeout)
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}

	if state == LoadStateNetworkIdle {
		if err := sleep(ctx, networkIdleQuiet); err != nil {
			return err
		}
	}
	p.refreshURL(ctx)
	return nil
}

func (p *ChromePage) Locator(selector string) Locator {
	return &chromeLocator{page: p, steps: []step{parseSelector(selector)}}
}

type chromeLocator struct {
	page  *ChromePage
	steps []step
}

func (l *chromeLocator) with(s step) *chromeLocator {
	steps := make([]step, len(l.steps), len(l.steps)+1)
	copy(steps, l.steps)
	return &chromeLocator{page: l.page, steps: append(steps, s)}
}

func (l *chromeLocator) nth(i int) *chromeLocator {
	steps := make([]step, len(l.steps))
	copy(steps, l.steps)
	steps[len(steps)-1].Nth = i
	return &chromeLocator{page: l.page, steps: steps}
}

func (l *chromeLocator) describe() string {
	parts := make([]string, len(l.steps))
	for i, s := range l.steps {
		parts[i] = s.CSS
		if s.Text != "" {
			parts[i] += fmt.Sprintf(":has-text(%q)", s.Text)
		}
	}
	return strings.Join(parts, " >> ")
}

func (l *chromeLocator) eval(ctx context.Context, op string, out interface{}) error {
	script, err := locatorScript(l.steps, op)
	if err != nil {
		return err
	}
	return l.page.run(ctx, l.page.actWait, l.describe(), chromedp.Evaluate(script, out))
}

func (l *chromeLocator) Count(ctx context.Context) (int, error) {
	var n int
	err := l.eval(ctx, opCount, &n)
	return n, err
}

func (l *chromeLocator) First() Locator    { return l.nth(0) }
func (l *chromeLocator) Nth(i int) Locator { return l.nth(i) }
func (l *chromeLocator) Locator(sel string) Locator {
	return l.with(parseSelector(sel))
}

func (l *chromeLocator) All(ctx context.Context) ([]Locator, error) {
	n, err := l.Count(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Locator, n)
	for i := range out {
		out[i] = l.nth(i)
	}
	return out, nil
}

func (l *chromeLocator) IsVisible(ctx context.Context) (bool, error) {
	var visible bool
	err := l.eval(ctx, opVisible, &visible)
	return visible, err
}

// waitAttached polls until the locator matches at least one element
func (l *chromeLocator) waitAttached(ctx context.Context) error {
	deadline := time.Now().Add(l.page.actWait)
	for {
		n, err := l.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s: %w", l.describe(), ErrTimeout)
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
}

func (l *chromeLocator) act(ctx context.Context, op string) error {
	if err := l.waitAttached(ctx); err != nil {
		return err
	}
	var ok bool
	if err := l.eval(ctx, op, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", l.describe(), ErrNotFound)
	}
	return nil
}

func (l *chromeLocator) Click(ctx context.Context) error {
	l.page.logger.DebugWithFields("click", map[string]interface{}{"selector": l.describe()})
	return l.act(ctx, opClick)
}

func (l *chromeLocator) Check(ctx context.Context) error {
	return l.act(ctx, opCheck)
}

func (l *chromeLocator) GetAttribute(ctx context.Context, name string) (string, error) {
	var res optional
	err := l.eval(ctx, attributeOp(name), &res)
	return res.Value, err
}

func (l *chromeLocator) TextContent(ctx context.Context) (string, error) {
	var res optional
	err := l.eval(ctx, opText, &res)
	return res.Value, err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
