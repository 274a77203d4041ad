package browser

import (
	"context"
	"fmt"
	"sync"
)

// FakeElement is a scripted element inside a FakePage
type FakeElement struct {
	Text     string
	Attrs    map[string]string
	Hidden   bool
	Checked  bool
	Clicks   int
	ClickErr error
	// OnClick runs after a successful click, without the page lock held
	OnClick  func(p *FakePage) error
	Children map[string][]*FakeElement
}

// FakePage is an in-memory Page whose elements are registered by exact
// selector string. It records navigation and load waits.
type FakePage struct {
	mu         sync.Mutex
	url        string
	html       string
	contentErr error
	elements   map[string][]*FakeElement

	// GotoFunc replaces the default navigation, which just sets the URL
	GotoFunc     func(p *FakePage, url string) error
	LoadStateErr map[LoadState]error

	Visited    []string
	LoadStates []LoadState
}

// NewFakePage returns an empty page at url
func NewFakePage(url string) *FakePage {
	return &FakePage{
		url:          url,
		elements:     make(map[string][]*FakeElement),
		LoadStateErr: make(map[LoadState]error),
	}
}

// Set replaces the elements matched by selector
func (p *FakePage) Set(selector string, els ...*FakeElement) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = els
	return p
}

// Remove drops every element registered under selector
func (p *FakePage) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

func (p *FakePage) SetURL(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = u
}

func (p *FakePage) SetContent(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

func (p *FakePage) SetContentError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contentErr = err
}

func (p *FakePage) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.Visited = append(p.Visited, url)
	fn := p.GotoFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(p, url)
	}
	p.SetURL(url)
	return nil
}

func (p *FakePage) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.contentErr != nil {
		return "", p.contentErr
	}
	return p.html, nil
}

func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *FakePage) WaitForLoadState(ctx context.Context, state LoadState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LoadStates = append(p.LoadStates, state)
	return p.LoadStateErr[state]
}

func (p *FakePage) Locator(selector string) Locator {
	return &fakeLocator{page: p, sel: selector, nth: -1}
}

type fakeLocator struct {
	page   *FakePage
	parent *fakeLocator
	sel    string
	nth    int
}

// resolve must be called with the page lock held
func (l *fakeLocator) resolve() []*FakeElement {
	var base []*FakeElement
	if l.parent == nil {
		base = l.page.elements[l.sel]
	} else {
		for _, e := range l.parent.resolve() {
			base = append(base, e.Children[l.sel]...)
		}
	}
	if l.nth >= 0 {
		if l.nth < len(base) {
			return base[l.nth : l.nth+1]
		}
		return nil
	}
	return base
}

func (l *fakeLocator) first() *FakeElement {
	els := l.resolve()
	if len(els) == 0 {
		return nil
	}
	return els[0]
}

func (l *fakeLocator) Count(ctx context.Context) (int, error) {
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	return len(l.resolve()), nil
}

func (l *fakeLocator) First() Locator { return l.Nth(0) }

func (l *fakeLocator) Nth(i int) Locator {
	return &fakeLocator{page: l.page, parent: l.parent, sel: l.sel, nth: i}
}

func (l *fakeLocator) Locator(selector string) Locator {
	return &fakeLocator{page: l.page, parent: l, sel: selector, nth: -1}
}

func (l *fakeLocator) All(ctx context.Context) ([]Locator, error) {
	n, _ := l.Count(ctx)
	out := make([]Locator, n)
	for i := range out {
		out[i] = l.Nth(i)
	}
	return out, nil
}

func (l *fakeLocator) IsVisible(ctx context.Context) (bool, error) {
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	e := l.first()
	return e != nil && !e.Hidden, nil
}

func (l *fakeLocator) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.page.mu.Lock()
	e := l.first()
	if e == nil {
		l.page.mu.Unlock()
		return fmt.Errorf("%s: %w", l.sel, ErrNotFound)
	}
	if e.ClickErr != nil {
		l.page.mu.Unlock()
		return e.ClickErr
	}
	e.Clicks++
	onClick := e.OnClick
	l.page.mu.Unlock()

	if onClick != nil {
		return onClick(l.page)
	}
	return nil
}

func (l *fakeLocator) Check(ctx context.Context) error {
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	e := l.first()
	if e == nil {
		return fmt.Errorf("%s: %w", l.sel, ErrNotFound)
	}
	e.Checked = true
	return nil
}

func (l *fakeLocator) GetAttribute(ctx context.Context, name string) (string, error) {
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	e := l.first()
	if e == nil {
		return "", nil
	}
	return e.Attrs[name], nil
}

func (l *fakeLocator) TextContent(ctx context.Context) (string, error) {
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	e := l.first()
	if e == nil {
		return "", nil
	}
	return e.Text, nil
}
