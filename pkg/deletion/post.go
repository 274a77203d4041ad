package deletion

import (
	"context"

	"fbcleanup/pkg/browser"
	errs "fbcleanup/pkg/errors"
	"fbcleanup/pkg/logger"
)

var (
	postElementSelectors = []string{
		`a:has-text("Delete")`,
		`a:has-text("Remove")`,
		`a[href*="delete"]`,
		`a[href*="remove"]`,
		`button:has-text("Delete")`,
	}
	postPageSelectors = []string{
		`a:has-text("Delete")`,
		`a[href*="delete"]`,
	}
)

// PostHandler deletes posts through the delete link and confirmation page
type PostHandler struct {
	flow
}

func NewPostHandler(l logger.Logger) *PostHandler {
	return &PostHandler{flow: newFlow(l)}
}

func (h *PostHandler) Name() string { return "post" }

func (h *PostHandler) CanHandle(item Item) bool { return item.Kind == KindPost }

func (h *PostHandler) Delete(ctx context.Context, page browser.Page, item Item) (string, error) {
	log := h.logger.WithFields(map[string]interface{}{"kind": item.Kind, "date": item.DateLabel()})

	link := h.findLink(ctx, page, item, postElementSelectors, postPageSelectors)
	if link == nil {
		return "", errs.NewPermanent("", "Delete link not found", nil)
	}

	log.Debug("clicking delete link")
	if err := h.click(ctx, link); err != nil {
		return "", err
	}
	if err := h.confirm(ctx, page); err != nil {
		return "", err
	}

	if !h.waitForNavigation(ctx, page) {
		if !containsAny(page.URL(), "error", "login") {
			return "Deletion completed (navigation check inconclusive)", nil
		}
		return "", errs.NewPermanent("", "Navigation failed after deletion", nil)
	}

	log.Info("post deleted")
	return "Post deleted successfully", nil
}
