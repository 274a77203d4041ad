package deletion

import (
	"context"
	"testing"

	"fbcleanup/pkg/browser"
	errs "fbcleanup/pkg/errors"
	"fbcleanup/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	deleteHref = `a[href="/delete.php?story_id=111"]`
	confirmSel = `input[type="submit"][value*="Delete"]`
	confirmURL = "https://mbasic.facebook.com/delete.php?story_id=111"
)

func quiet(f *flow) {
	f.logger = logger.NewNopLogger()
	f.pause = func(context.Context) error { return nil }
	f.settle = 0
}

// confirmFlow registers a delete link that opens a confirmation page whose
// button returns to the activity log.
func confirmFlow(page *browser.FakePage) (link, button *browser.FakeElement) {
	button = &browser.FakeElement{
		Attrs: map[string]string{"value": "Delete"},
		OnClick: func(p *browser.FakePage) error {
			p.Remove(confirmSel)
			p.SetURL(activityURL)
			return nil
		},
	}
	link = &browser.FakeElement{
		Text: "Delete",
		OnClick: func(p *browser.FakePage) error {
			p.SetURL(confirmURL)
			p.Set(confirmSel, button)
			return nil
		},
	}
	page.Set(deleteHref, link)
	return link, button
}

func TestPostHandlerDeletesWithConfirmation(t *testing.T) {
	page := browser.NewFakePage(activityURL)
	link, button := confirmFlow(page)

	h := NewPostHandler(nil)
	quiet(&h.flow)

	item := Item{Kind: KindPost, Link: page.Locator(deleteHref).First()}
	msg, err := h.Delete(context.Background(), page, item)

	require.NoError(t, err)
	assert.Equal(t, "Post deleted successfully", msg)
	assert.Equal(t, 1, link.Clicks)
	assert.Equal(t, 1, button.Clicks)
	assert.Equal(t, activityURL, page.URL())
}

func TestPostHandlerFallsBackToElementSelectors(t *testing.T) {
	page := browser.NewFakePage(activityURL)
	inner := &browser.FakeElement{Text: "Remove"}
	page.Set(`[id="s1"]`, &browser.FakeElement{
		Children: map[string][]*browser.FakeElement{`a:has-text("Remove")`: {inner}},
	})

	h := NewPostHandler(nil)
	quiet(&h.flow)

	item := Item{Kind: KindPost, Link: page.Locator(deleteHref).First(), Element: page.Locator(`[id="s1"]`)}
	msg, err := h.Delete(context.Background(), page, item)

	require.NoError(t, err)
	assert.Equal(t, "Post deleted successfully", msg)
	assert.Equal(t, 1, inner.Clicks)
}

func TestPostHandlerFailures(t *testing.T) {
	t.Run("no link", func(t *testing.T) {
		page := browser.NewFakePage(activityURL)
		h := NewPostHandler(nil)
		quiet(&h.flow)

		_, err := h.Delete(context.Background(), page, Item{Kind: KindPost})
		require.Error(t, err)
		assert.Equal(t, "Delete link not found", err.Error())
		assert.Equal(t, errs.Permanent, errs.KindOf(err))
	})

	t.Run("click timeout is transient", func(t *testing.T) {
		page := browser.NewFakePage(activityURL)
		page.Set(deleteHref, &browser.FakeElement{ClickErr: browser.ErrTimeout})
		h := NewPostHandler(nil)
		quiet(&h.flow)

		_, err := h.Delete(context.Background(), page, Item{Kind: KindPost, Link: page.Locator(deleteHref).First()})
		require.Error(t, err)
		assert.True(t, errs.IsTransient(err))
		assert.Contains(t, err.Error(), "Timeout")
	})

	t.Run("confirmation without button", func(t *testing.T) {
		page := browser.NewFakePage(activityURL)
		page.Set(deleteHref, &browser.FakeElement{OnClick: func(p *browser.FakePage) error {
			p.SetURL(confirmURL)
			return nil
		}})
		h := NewPostHandler(nil)
		quiet(&h.flow)

		_, err := h.Delete(context.Background(), page, Item{Kind: KindPost, Link: page.Locator(deleteHref).First()})
		require.Error(t, err)
		assert.Equal(t, "Could not click confirmation button", err.Error())
		assert.Equal(t, errs.Permanent, errs.KindOf(err))
	})

	t.Run("stuck on error page", func(t *testing.T) {
		page := browser.NewFakePage(activityURL)
		page.Set(confirmSel, &browser.FakeElement{OnClick: func(p *browser.FakePage) error {
			p.SetURL("https://mbasic.facebook.com/confirm/error")
			return nil
		}})
		page.Set(deleteHref, &browser.FakeElement{OnClick: func(p *browser.FakePage) error {
			p.SetURL(confirmURL)
			return nil
		}})
		h := NewPostHandler(nil)
		quiet(&h.flow)

		_, err := h.Delete(context.Background(), page, Item{Kind: KindPost, Link: page.Locator(deleteHref).First()})
		require.Error(t, err)
		assert.Equal(t, "Navigation failed after deletion", err.Error())
	})
}

func TestPostHandlerInconclusiveNavigationCountsAsSuccess(t *testing.T) {
	page := browser.NewFakePage(activityURL)
	page.Set(deleteHref, &browser.FakeElement{OnClick: func(p *browser.FakePage) error {
		p.LoadStateErr[browser.LoadStateNetworkIdle] = browser.ErrTimeout
		return nil
	}})
	h := NewPostHandler(nil)
	quiet(&h.flow)

	msg, err := h.Delete(context.Background(), page, Item{Kind: KindPost, Link: page.Locator(deleteHref).First()})
	require.NoError(t, err)
	assert.Equal(t, "Deletion completed (navigation check inconclusive)", msg)
}

func TestCommentHandlerViewsContextFirst(t *testing.T) {
	page := browser.NewFakePage(activityURL)
	deleteLink := &browser.FakeElement{Text: "Delete", OnClick: func(p *browser.FakePage) error {
		p.SetURL("https://mbasic.facebook.com/comment/done")
		return nil
	}}
	contextLink := &browser.FakeElement{Text: "View Context", OnClick: func(p *browser.FakePage) error {
		p.SetURL("https://mbasic.facebook.com/story.php?id=222")
		p.Set(`a:has-text("Delete")`, deleteLink)
		return nil
	}}
	page.Set(`[id="c1"]`, &browser.FakeElement{
		Children: map[string][]*browser.FakeElement{`a:has-text("View Context")`: {contextLink}},
	})

	h := NewCommentHandler(nil)
	quiet(&h.flow)

	item := Item{Kind: KindComment, Element: page.Locator(`[id="c1"]`)}
	msg, err := h.Delete(context.Background(), page, item)

	require.NoError(t, err)
	assert.Equal(t, "Comment deleted successfully", msg)
	assert.Equal(t, 1, contextLink.Clicks)
	assert.Equal(t, 1, deleteLink.Clicks)
	assert.Equal(t, []string{activityURL}, page.Visited)
}

func TestCommentHandlerFailures(t *testing.T) {
	t.Run("no context link", func(t *testing.T) {
		page := browser.NewFakePage(activityURL)
		page.Set(`[id="c1"]`, &browser.FakeElement{})
		h := NewCommentHandler(nil)
		quiet(&h.flow)

		_, err := h.Delete(context.Background(), page, Item{Kind: KindComment, Element: page.Locator(`[id="c1"]`)})
		require.Error(t, err)
		assert.Equal(t, "Could not navigate to comment context", err.Error())
	})

	t.Run("no delete link in context", func(t *testing.T) {
		page := browser.NewFakePage(activityURL)
		page.Set(`[id="c1"]`, &browser.FakeElement{
			Children: map[string][]*browser.FakeElement{`a:has-text("View Context")`: {{Text: "View Context"}}},
		})
		h := NewCommentHandler(nil)
		quiet(&h.flow)

		_, err := h.Delete(context.Background(), page, Item{Kind: KindComment, Element: page.Locator(`[id="c1"]`)})
		require.Error(t, err)
		assert.Equal(t, "Delete link not found after viewing context", err.Error())
	})
}

func TestCommentHandlerNavigationBackFails(t *testing.T) {
	page := browser.NewFakePage(activityURL)
	page.Set(deleteHref, &browser.FakeElement{OnClick: func(p *browser.FakePage) error {
		p.SetURL("https://mbasic.facebook.com/comment/done")
		return nil
	}})
	page.GotoFunc = func(*browser.FakePage, string) error { return browser.ErrTimeout }

	h := NewCommentHandler(nil)
	quiet(&h.flow)

	msg, err := h.Delete(context.Background(), page, Item{Kind: KindComment, Link: page.Locator(deleteHref).First()})
	require.NoError(t, err)
	assert.Equal(t, "Comment deleted (navigation back failed)", msg)
}

func TestReactionHandler(t *testing.T) {
	const unlike = `a[href="/ufi/unlike?id=333"]`

	t.Run("link disappears", func(t *testing.T) {
		page := browser.NewFakePage(activityURL)
		el := &browser.FakeElement{Text: "Unlike"}
		el.OnClick = func(*browser.FakePage) error {
			el.Hidden = true
			return nil
		}
		page.Set(unlike, el)
		h := NewReactionHandler(nil)
		quiet(&h.flow)

		msg, err := h.Delete(context.Background(), page, Item{Kind: KindReaction, Link: page.Locator(unlike).First()})
		require.NoError(t, err)
		assert.Equal(t, "Reaction removed successfully", msg)
	})

	t.Run("link still visible", func(t *testing.T) {
		page := browser.NewFakePage(activityURL)
		page.Set(unlike, &browser.FakeElement{Text: "Unlike"})
		h := NewReactionHandler(nil)
		quiet(&h.flow)

		msg, err := h.Delete(context.Background(), page, Item{Kind: KindReaction, Link: page.Locator(unlike).First()})
		require.NoError(t, err)
		assert.Equal(t, "Reaction removal attempted (status unclear)", msg)
	})

	t.Run("page level fallback", func(t *testing.T) {
		page := browser.NewFakePage(activityURL)
		el := &browser.FakeElement{Text: "Unlike"}
		el.OnClick = func(p *browser.FakePage) error {
			p.Remove(`a:has-text("Unlike")`)
			return nil
		}
		page.Set(`a:has-text("Unlike")`, el)
		h := NewReactionHandler(nil)
		quiet(&h.flow)

		msg, err := h.Delete(context.Background(), page, Item{Kind: KindReaction})
		require.NoError(t, err)
		assert.Equal(t, "Reaction removed successfully", msg)
		assert.Equal(t, 1, el.Clicks)
	})

	t.Run("no link", func(t *testing.T) {
		page := browser.NewFakePage(activityURL)
		h := NewReactionHandler(nil)
		quiet(&h.flow)

		_, err := h.Delete(context.Background(), page, Item{Kind: KindReaction})
		require.Error(t, err)
		assert.Equal(t, "Unlike/Remove link not found", err.Error())
	})
}

func TestDefaultHandlersOrder(t *testing.T) {
	hs := DefaultHandlers(logger.NewNopLogger())
	require.Len(t, hs, 3)
	assert.Equal(t, "post", hs[0].Name())
	assert.Equal(t, "comment", hs[1].Name())
	assert.Equal(t, "reaction", hs[2].Name())

	assert.True(t, hs[1].CanHandle(Item{Kind: KindComment}))
	assert.False(t, hs[0].CanHandle(Item{Kind: KindReaction}))
}
