package deletion

import (
	"context"

	"fbcleanup/pkg/browser"
	errs "fbcleanup/pkg/errors"
	"fbcleanup/pkg/logger"
	"fbcleanup/pkg/retry"
)

var (
	reactionElementSelectors = []string{
		`a:has-text("Unlike")`,
		`a:has-text("Remove reaction")`,
		`a:has-text("Remove Reaction")`,
		`a[href*="unlike"]`,
		`a[href*="remove"]`,
		`button:has-text("Unlike")`,
	}
	reactionPageSelectors = []string{
		`a:has-text("Unlike")`,
		`a:has-text("Remove reaction")`,
		`a[href*="unlike"]`,
	}
)

// ReactionHandler removes likes and reactions. There is no confirmation
// step; success is judged by the unlike link disappearing.
type ReactionHandler struct {
	flow
}

func NewReactionHandler(l logger.Logger) *ReactionHandler {
	return &ReactionHandler{flow: newFlow(l)}
}

func (h *ReactionHandler) Name() string { return "reaction" }

func (h *ReactionHandler) CanHandle(item Item) bool { return item.Kind == KindReaction }

func (h *ReactionHandler) Delete(ctx context.Context, page browser.Page, item Item) (string, error) {
	link := h.findLink(ctx, page, item, reactionElementSelectors, reactionPageSelectors)
	if link == nil {
		return "", errs.NewPermanent("", "Unlike/Remove link not found", nil)
	}

	if err := h.click(ctx, link); err != nil {
		return "", err
	}

	if err := retry.Wait(ctx, h.settle); err != nil {
		return "Reaction removal attempted", nil
	}
	if ok, _ := link.IsVisible(ctx); !ok {
		return "Reaction removed successfully", nil
	}

	if err := page.WaitForLoadState(ctx, browser.LoadStateNetworkIdle); err != nil {
		return "Reaction removal attempted", nil
	}
	if ok, _ := link.IsVisible(ctx); !ok {
		return "Reaction removed successfully", nil
	}

	h.logger.WithField("date", item.DateLabel()).Warn("unlike link still visible after click")
	return "Reaction removal attempted (status unclear)", nil
}
