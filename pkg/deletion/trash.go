package deletion

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fbcleanup/pkg/browser"
	"fbcleanup/pkg/logger"
	"fbcleanup/pkg/retry"
)

// TrashURL is the mbasic recycle bin
const TrashURL = "https://mbasic.facebook.com/trash"

var (
	trashEmptyTexts    = []string{"No items", "Trash is empty", "Nothing in trash"}
	trashItemSelectors = []string{`input[type="checkbox"]`, `div[role="article"]`, `article`}

	trashCheckboxSelectors = []string{
		`input[type="checkbox"][name*="select"]`,
		`input[type="checkbox"]:first-of-type`,
	}
	trashSelectAllSelectors = []string{
		`a:has-text("Select All")`,
		`button:has-text("Select All")`,
	}
	trashDeleteSelectors = []string{
		`input[type="submit"][value*="Delete"]`,
		`button:has-text("Delete")`,
		`a:has-text("Delete")`,
		`input[type="submit"]`,
	}
	trashConfirmSelectors = []string{
		`input[type="submit"][value*="Delete"]`,
		`button:has-text("Delete")`,
		`button:has-text("Confirm")`,
	}
)

// TrashResult reports a trash cleanup pass
type TrashResult struct {
	Deleted int      `json:"deleted"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// TrashCleanup empties the recycle bin so deleted posts are removed for good
type TrashCleanup struct {
	flow
}

func NewTrashCleanup(l logger.Logger) *TrashCleanup {
	return &TrashCleanup{flow: newFlow(l)}
}

// Cleanup selects everything in the trash and deletes it in one action
func (t *TrashCleanup) Cleanup(ctx context.Context, page browser.Page) TrashResult {
	res := TrashResult{Errors: []string{}}

	t.logger.Info("navigating to trash")
	if err := page.Goto(ctx, TrashURL); err != nil {
		return t.fail(res, err)
	}
	if err := page.WaitForLoadState(ctx, browser.LoadStateNetworkIdle); err != nil {
		return t.fail(res, err)
	}

	if t.isEmpty(ctx, page) {
		t.logger.Info("trash is empty")
		return res
	}

	if !t.selectAll(ctx, page) {
		t.logger.Warn("could not select trash items")
		res.Failed = 1
		return res
	}

	if err := t.deleteSelected(ctx, page); err != nil {
		return t.fail(res, err)
	}

	res.Deleted = 1
	t.logger.Info("trash emptied")
	return res
}

func (t *TrashCleanup) fail(res TrashResult, err error) TrashResult {
	res.Failed = 1
	if browser.IsTimeout(err) {
		res.Errors = append(res.Errors, "Timeout: "+err.Error())
	} else {
		res.Errors = append(res.Errors, "Error: "+err.Error())
	}
	t.logger.WithError(err).Warn("trash cleanup failed")
	return res
}

func (t *TrashCleanup) isEmpty(ctx context.Context, page browser.Page) bool {
	if html, err := page.Content(ctx); err == nil {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
			text := doc.Text()
			for _, s := range trashEmptyTexts {
				if strings.Contains(text, s) {
					return true
				}
			}
		}
	}

	for _, sel := range trashItemSelectors {
		if n, _ := page.Locator(sel).Count(ctx); n > 0 {
			return false
		}
	}
	return true
}

func (t *TrashCleanup) selectAll(ctx context.Context, page browser.Page) bool {
	for _, sel := range trashCheckboxSelectors {
		boxes, err := page.Locator(sel).All(ctx)
		if err != nil || len(boxes) == 0 {
			continue
		}
		checked := 0
		for _, b := range boxes {
			if ok, _ := b.IsVisible(ctx); !ok {
				continue
			}
			if err := b.Check(ctx); err == nil {
				checked++
			}
		}
		if checked > 0 {
			t.logger.WithField("items", checked).Debug("selected trash items")
			return true
		}
	}

	for _, sel := range trashSelectAllSelectors {
		link := firstVisible(ctx, page.Locator(sel))
		if link == nil {
			continue
		}
		if err := link.Click(ctx); err != nil {
			continue
		}
		if err := retry.Wait(ctx, t.settle); err != nil {
			return false
		}
		return true
	}
	return false
}

func (t *TrashCleanup) deleteSelected(ctx context.Context, page browser.Page) error {
	clicked := false
	for _, sel := range trashDeleteSelectors {
		btn := firstVisible(ctx, page.Locator(sel))
		if btn == nil {
			continue
		}
		if err := t.pause(ctx); err != nil {
			return err
		}
		if err := btn.Click(ctx); err != nil {
			return err
		}
		clicked = true
		break
	}
	if !clicked {
		return browser.ErrNotFound
	}
	if err := page.WaitForLoadState(ctx, browser.LoadStateNetworkIdle); err != nil {
		return err
	}

	for _, sel := range trashConfirmSelectors {
		btn := firstVisible(ctx, page.Locator(sel))
		if btn == nil {
			continue
		}
		if err := btn.Click(ctx); err != nil {
			return err
		}
		return page.WaitForLoadState(ctx, browser.LoadStateNetworkIdle)
	}
	return nil
}
