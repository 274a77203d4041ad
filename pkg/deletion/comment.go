package deletion

import (
	"context"

	"fbcleanup/pkg/browser"
	errs "fbcleanup/pkg/errors"
	"fbcleanup/pkg/logger"
)

var viewContextSelectors = []string{
	`a:has-text("View Context")`,
	`a:has-text("View context")`,
	`a:has-text("View Post")`,
	`a:has-text("View post")`,
	`a[href*="view"]`,
}

// CommentHandler deletes comments. When the activity log shows no delete
// link it opens the comment in context first.
type CommentHandler struct {
	flow
}

func NewCommentHandler(l logger.Logger) *CommentHandler {
	return &CommentHandler{flow: newFlow(l)}
}

func (h *CommentHandler) Name() string { return "comment" }

func (h *CommentHandler) CanHandle(item Item) bool { return item.Kind == KindComment }

func (h *CommentHandler) Delete(ctx context.Context, page browser.Page, item Item) (string, error) {
	originalURL := page.URL()

	link := h.findLink(ctx, page, item, postElementSelectors, postPageSelectors)
	if link == nil {
		if err := h.openContext(ctx, page, item); err != nil {
			return "", err
		}
		link = h.findLink(ctx, page, Item{}, nil, postPageSelectors)
		if link == nil {
			return "", errs.NewPermanent("", "Delete link not found after viewing context", nil)
		}
	}

	if err := h.click(ctx, link); err != nil {
		return "", err
	}
	if err := h.confirm(ctx, page); err != nil {
		return "", err
	}
	h.waitForNavigation(ctx, page)

	if !containsFold(page.URL(), activityLogMarker) {
		if err := page.Goto(ctx, originalURL); err != nil {
			h.logger.WithError(err).Warn("could not return to activity log after comment deletion")
			return "Comment deleted (navigation back failed)", nil
		}
	}

	h.logger.WithField("date", item.DateLabel()).Info("comment deleted")
	return "Comment deleted successfully", nil
}

func (h *CommentHandler) openContext(ctx context.Context, page browser.Page, item Item) error {
	if item.Element != nil {
		for _, sel := range viewContextSelectors {
			link := item.Element.Locator(sel).First()
			if ok, _ := link.IsVisible(ctx); !ok {
				continue
			}
			if err := h.click(ctx, link); err != nil {
				return err
			}
			if err := page.WaitForLoadState(ctx, browser.LoadStateNetworkIdle); err != nil {
				return classify(err)
			}
			return nil
		}
	}
	return errs.NewPermanent("", "Could not navigate to comment context", nil)
}
