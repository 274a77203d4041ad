package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"fbcleanup/pkg/auth"
	"fbcleanup/pkg/browser"
	"fbcleanup/pkg/config"
	"fbcleanup/pkg/deletion"
	"fbcleanup/pkg/logger"
	"fbcleanup/pkg/ratelimit"
	"fbcleanup/pkg/safety"
	"fbcleanup/pkg/state"
	"fbcleanup/pkg/stats"
	"fbcleanup/pkg/traversal"
	"fbcleanup/pkg/ui"
)

const (
	exitOK      = 0
	exitFailure = 1
)

// errBlocked ends the traversal after a block has been persisted
var errBlocked = errors.New("facebook block detected")

// sessionChecker is satisfied by *auth.SessionValidator
type sessionChecker interface {
	Check(ctx context.Context, page browser.Page) error
}

// runner owns one cleanup run. Every collaborator is injected so the loop
// can be driven against a fake page.
type runner struct {
	cfg       *config.Config
	target    time.Time
	startYear int
	resume    bool
	skipTrash bool

	open     func(ctx context.Context) (browser.Page, error)
	states   *state.Manager
	reporter *stats.Reporter
	limiter  *ratelimit.RateLimiter
	blocks   *safety.BlockManager
	detector *safety.ErrorDetector
	session  sessionChecker
	trash    *deletion.TrashCleanup

	display     ui.Display
	waitDisplay func()
	notifier    *ui.Notifier
	out         io.Writer
	log         logger.Logger

	// extra engine options, used by tests to swap the extractor
	engineOpts []deletion.Option
}

// run executes the main loop and returns the process exit code
func (r *runner) run(ctx context.Context) int {
	code := r.execute(ctx)
	r.finish()
	return code
}

func (r *runner) execute(ctx context.Context) int {
	st := r.states.GetState()
	if err := r.reporter.UpdateFromState(st); err != nil {
		r.log.WithError(err).Warn("could not seed statistics from saved progress")
	}

	var lastBlock *time.Time
	if st.LastBlockTime != nil && !st.LastBlockTime.IsZero() {
		t := st.LastBlockTime.Time
		lastBlock = &t
	}
	r.blocks.Restore(st.BlockDetected, st.BlockCount, lastBlock)
	if !r.blocks.ShouldContinue() {
		info := r.blocks.Info()
		r.display.Log("ERROR", "Still cooling down after block #%d", info.Count)
		if info.ResumeAt != nil {
			ui.PrintError("Still cooling down after a Facebook block", "resume after "+info.ResumeAt.Format(time.RFC1123))
		} else {
			ui.PrintError("Still cooling down after a Facebook block")
		}
		return exitFailure
	}
	// deletion.NewEngine applies the backoff for a block on record
	if r.blocks.Detected() {
		r.log.WithField("block_count", r.blocks.Count()).Warn("cool-down over, resuming with slower pacing")
	}

	page, err := r.open(ctx)
	if err != nil {
		r.log.WithError(err).Error("failed to launch browser")
		ui.PrintError("Failed to launch browser", err.Error())
		return exitFailure
	}

	if err := r.session.Check(ctx, page); err != nil {
		r.log.WithError(err).Error("session validation failed")
		ui.PrintError("Session check failed", err.Error())
		auth.ShowQuickExportGuide(r.out)
		return exitFailure
	}
	r.display.Log("INFO", "Session valid")

	username := r.cfg.Facebook.Username
	if username == "" {
		username = traversal.UsernameFromURL(st.URL())
	}
	if username == "" {
		r.log.Error("no username configured and none in saved progress")
		ui.PrintError("No Facebook username", "set facebook.username, FACEBOOK_USERNAME or --username")
		return exitFailure
	}

	var resume *state.ProgressState
	if r.resume {
		resume = st
	}
	walker, err := traversal.NewEngine(page, username, traversal.Options{
		TargetYear: r.target.Year(),
		StartYear:  r.startYear,
		MinYear:    r.cfg.Traversal.MinYear,
		Resume:     resume,
		Logger:     r.log,
	})
	if err != nil {
		ui.PrintError("Invalid username", err.Error())
		return exitFailure
	}

	opts := []deletion.Option{
		deletion.WithLimiter(r.limiter),
		deletion.WithDetector(r.detector),
		deletion.WithBlockManager(r.blocks),
		deletion.WithStateManager(r.states),
		deletion.WithLogger(r.log),
		deletion.WithTargetDate(r.target),
		deletion.WithMaxRetries(r.cfg.Safety.MaxRetries),
		deletion.WithItemHook(r.onItem),
	}
	deleter := deletion.NewEngine(page, append(opts, r.engineOpts...)...)

	logger.LogComponentStart("cleanup", map[string]interface{}{
		"username":     username,
		"target_date":  r.target.Format("2006-01-02"),
		"start_year":   walker.StartYear(),
		"max_per_hour": r.cfg.Safety.MaxDeletionsPerHour,
	})

	err = r.walk(ctx, walker, r.visitor(deleter))
	switch {
	case errors.Is(err, errBlocked):
		logger.LogComponentStop("cleanup", "block detected")
		info := r.blocks.Info()
		if info.ResumeAt != nil {
			ui.PrintError("Facebook block detected", "progress saved, resume after "+info.ResumeAt.Format(time.RFC1123))
		} else {
			ui.PrintError("Facebook block detected", "progress saved")
		}
		return exitFailure
	case ctx.Err() != nil:
		logger.LogComponentStop("cleanup", "interrupted")
		ui.PrintWarning("Interrupted", "progress saved, run again to resume")
		return exitOK
	case err != nil:
		logger.LogComponentStop("cleanup", err.Error())
		r.log.WithError(err).Error("traversal failed")
		ui.PrintError("Traversal failed", err.Error())
		return exitFailure
	}

	if !r.skipTrash {
		res := r.trash.Cleanup(ctx, page)
		if res.Failed > 0 || len(res.Errors) > 0 {
			for _, e := range res.Errors {
				r.display.Log("WARN", "trash cleanup: %s", e)
			}
			ui.PrintWarning("Trash cleanup incomplete", fmt.Sprintf("%d failed", res.Failed))
		} else if res.Deleted > 0 {
			r.display.Log("INFO", "Emptied %d items from trash", res.Deleted)
		}
	}

	logger.LogComponentStop("cleanup", "completed")
	snap := r.reporter.Snapshot()
	r.notifier.NotifyComplete(snap.TotalDeleted, snap.TotalFailed, snap.Elapsed)
	ui.PrintSuccess("[CLEANUP COMPLETE]")
	return exitOK
}

// walk uses the combined Activity Log unless the configuration narrows the
// run to a subset of categories, which are then walked one by one.
func (r *runner) walk(ctx context.Context, walker *traversal.Engine, visit traversal.VisitFunc) error {
	cats := r.cfg.Facebook.Categories
	if len(cats) == 0 || len(cats) >= len(allCategories) {
		return walker.Traverse(ctx, visit)
	}
	for _, cat := range cats {
		if err := walker.TraverseCategory(ctx, cat, 0, 0, visit); err != nil {
			return err
		}
	}
	return nil
}

var allCategories = []string{config.CategoryPosts, config.CategoryComments, config.CategoryReactions}

// visitor processes one page: record the position, delete, then report.
// A page cut short by the hourly cap is reloaded and processed again once
// the window has room.
func (r *runner) visitor(deleter *deletion.Engine) traversal.VisitFunc {
	return func(ctx context.Context, info traversal.PageInfo) error {
		if err := r.states.UpdateState(func(s *state.ProgressState) {
			s.SetPosition(info.Year, info.Month, info.URL)
		}); err != nil {
			r.log.WithError(err).Warn("failed to save position")
		}

		for {
			outcome := deleter.ProcessPage(ctx, info.Page)
			r.reporter.UpdateFromPageStats(outcome)
			logger.LogBatch(r.log, info.Year, info.Month, info.PageNumber,
				outcome.Deleted, outcome.Failed, outcome.Skipped, len(outcome.Errors))
			r.publish(info)

			if outcome.Blocked() {
				return r.handleBlock()
			}
			if !outcome.RateLimited() || ctx.Err() != nil {
				return nil
			}

			r.display.Log("WARN", "Hourly cap reached, waiting for the window to free up")
			if _, err := r.limiter.WaitForCapacity(ctx); err != nil {
				return err
			}
			if err := info.Page.Goto(ctx, info.URL); err != nil {
				r.log.WithError(err).WithField("url", info.URL).Warn("failed to reload page after rate limit wait")
				return nil
			}
		}
	}
}

// handleBlock persists the block and stops the run
func (r *runner) handleBlock() error {
	info := r.blocks.Info()
	if err := r.states.UpdateState(func(s *state.ProgressState) {
		s.BlockDetected = true
		s.BlockCount = info.Count
		if info.LastBlockTime != nil {
			s.LastBlockTime = &state.Timestamp{Time: *info.LastBlockTime}
		}
	}); err != nil {
		r.log.WithError(err).Error("failed to save block state")
	}

	var resumeAt time.Time
	if info.ResumeAt != nil {
		resumeAt = *info.ResumeAt
	}
	logger.LogBlock(r.log, "block detected during deletion", info.Count, resumeAt)
	r.notifier.NotifyBlock(info.Count, resumeAt)
	return errBlocked
}

func (r *runner) onItem(item deletion.Item, ok bool, msg string) {
	if !ok {
		r.display.Log("WARN", "%s %s: %s", item.Kind, item.DateLabel(), msg)
	}
}

// publish pushes the current totals to the display
func (r *runner) publish(info traversal.PageInfo) {
	snap := r.reporter.Snapshot()
	ls := r.limiter.Stats()
	bi := r.blocks.Info()

	p := ui.Progress{
		Year:       info.Year,
		Month:      info.Month,
		Page:       info.PageNumber,
		URL:        info.URL,
		Deleted:    snap.TotalDeleted,
		Failed:     snap.TotalFailed,
		Skipped:    snap.TotalSkipped,
		Errors:     snap.ErrorsEncountered,
		WindowUsed: ls.ActionsLastHour,
		WindowMax:  ls.MaxPerHour,
		Blocked:    bi.Detected && !bi.CanContinue,
		BlockCount: bi.Count,
		Started:    snap.StartTime,
	}
	if bi.ResumeAt != nil {
		p.ResumeAt = *bi.ResumeAt
	}
	r.display.Update(p)
}

// finish tears down the display, prints the summary and saves the final
// state. It runs on every exit path once the state has been loaded.
func (r *runner) finish() {
	r.display.Close()
	if r.waitDisplay != nil {
		r.waitDisplay()
	}

	r.reporter.PrintSummary(nil)
	ui.PrintBlock(r.reporter.Summary())

	if err := r.states.SaveState(r.states.GetState()); err != nil {
		r.log.WithError(err).Error("failed to save final state")
	}
}
