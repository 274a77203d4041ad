package deletion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fbcleanup/pkg/browser"
	errs "fbcleanup/pkg/errors"
	"fbcleanup/pkg/logger"
	"fbcleanup/pkg/ratelimit"
	"fbcleanup/pkg/retry"
	"fbcleanup/pkg/safety"
	"fbcleanup/pkg/state"
)

// DefaultMaxRetries bounds the attempts per item, including the first
const DefaultMaxRetries = 3

// Limiter paces actions. *ratelimit.RateLimiter implements it.
type Limiter interface {
	WaitBeforeAction(ctx context.Context) (bool, error)
	RecordAction()
	safety.Pacer
}

// ItemHook observes every attempted item
type ItemHook func(item Item, ok bool, message string)

// Engine deletes the items of one page at a time, gated by the rate
// limiter and the block manager.
type Engine struct {
	page       browser.Page
	handlers   []Handler
	extractor  ItemExtractor
	limiter    Limiter
	detector   *safety.ErrorDetector
	blocks     *safety.BlockManager
	state      *state.Manager
	logger     logger.Logger
	target     time.Time
	maxRetries int
	onItem     ItemHook
}

// Option configures an Engine
type Option func(*Engine)

// WithHandlers sets the ordered handler list; the first match wins
func WithHandlers(h ...Handler) Option {
	return func(e *Engine) { e.handlers = h }
}

func WithExtractor(x ItemExtractor) Option {
	return func(e *Engine) { e.extractor = x }
}

func WithLimiter(l Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

func WithDetector(d *safety.ErrorDetector) Option {
	return func(e *Engine) { e.detector = d }
}

func WithBlockManager(b *safety.BlockManager) Option {
	return func(e *Engine) { e.blocks = b }
}

// WithStateManager enables persisting batch totals after every page
func WithStateManager(m *state.Manager) Option {
	return func(e *Engine) { e.state = m }
}

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTargetDate sets the cutoff for the default extractor
func WithTargetDate(t time.Time) Option {
	return func(e *Engine) { e.target = t }
}

func WithMaxRetries(n int) Option {
	return func(e *Engine) { e.maxRetries = n }
}

func WithItemHook(fn ItemHook) Option {
	return func(e *Engine) { e.onItem = fn }
}

// NewEngine builds an engine for page. Collaborators not supplied through
// options get defaults. If the block manager already carries a block, the
// backoff is applied to the limiter straight away.
func NewEngine(page browser.Page, opts ...Option) *Engine {
	e := &Engine{
		page:       page,
		target:     time.Date(2021, time.January, 1, 0, 0, 0, 0, time.Local),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.logger = logger.OrGlobal(e.logger)
	if e.handlers == nil {
		e.handlers = DefaultHandlers(e.logger)
	}
	if e.extractor == nil {
		e.extractor = NewExtractor(e.target, e.logger)
	}
	if e.limiter == nil {
		cfg := ratelimit.DefaultConfig()
		cfg.Logger = e.logger
		e.limiter = ratelimit.New(cfg)
	}
	if e.detector == nil {
		e.detector = safety.NewErrorDetector().WithLogger(e.logger)
	}
	if e.blocks == nil {
		e.blocks = safety.NewBlockManager(0, 0).WithLogger(e.logger)
	}
	if e.maxRetries < 1 {
		e.maxRetries = DefaultMaxRetries
	}

	if e.blocks.Detected() {
		e.logger.Warn("previous block on record, applying backoff")
		e.blocks.ApplyBackoff(e.limiter)
	}
	return e
}

// Handlers returns the ordered handler list
func (e *Engine) Handlers() []Handler { return e.handlers }

// ProcessPage extracts and deletes the items on page. It stops early on a
// block or when the hourly cap is reached. The batch totals and block status
// are persisted after every batch except an empty page.
func (e *Engine) ProcessPage(ctx context.Context, page browser.Page) BatchOutcome {
	if page == nil {
		page = e.page
	}
	out := newOutcome()

	items, err := e.extractor.Extract(ctx, page)
	if err != nil {
		e.logger.WithError(err).Warn("item extraction failed")
		e.persist(out)
		return out
	}
	if len(items) == 0 {
		e.logger.Info("no items found on page")
		return out
	}
	e.logger.WithField("items", len(items)).Info("processing page")

	for i, item := range items {
		if ctx.Err() != nil {
			e.logger.Info("batch interrupted")
			break
		}

		if !e.blocks.ShouldContinue() {
			out.Errors = append(out.Errors, ItemError{
				Kind:    errKindBlock,
				Date:    "N/A",
				Message: "Action block detected, must wait",
			})
			out.Stop = errs.ErrBlocked
			break
		}

		ok, err := e.limiter.WaitBeforeAction(ctx)
		if err != nil {
			e.logger.WithError(err).Info("batch interrupted while pacing")
			break
		}
		if !ok {
			out.Errors = append(out.Errors, ItemError{
				Kind:    errKindRateLimit,
				Date:    "N/A",
				Message: "Rate limit exceeded",
			})
			out.Stop = errs.ErrRateLimited
			break
		}

		e.logger.DebugWithFields("deleting item", map[string]interface{}{
			"index": i + 1,
			"of":    len(items),
			"kind":  item.Kind,
			"date":  item.DateLabel(),
		})
		deleted, msg := e.DeleteItem(ctx, page, item, e.maxRetries)
		e.limiter.RecordAction()

		if found, detail := e.detector.CheckForErrors(ctx, page); found {
			if e.blocks.CheckAndHandleBlock(ctx, page, e.detector) {
				e.blocks.ApplyBackoff(e.limiter)
				out.Errors = append(out.Errors, ItemError{
					Kind:    string(item.Kind),
					Date:    item.DateLabel(),
					Message: "Block detected: " + detail,
				})
				out.Stop = errs.ErrBlocked
				break
			}
		}

		if deleted {
			out.Deleted++
			out.DeletedByKind[item.Kind]++
		} else {
			out.Failed++
			out.Errors = append(out.Errors, ItemError{
				Kind:    string(item.Kind),
				Date:    item.DateLabel(),
				Message: msg,
			})
		}
		if e.onItem != nil {
			e.onItem(item, deleted, msg)
		}
	}

	e.persist(out)
	return out
}

func (e *Engine) persist(out BatchOutcome) {
	if e.state == nil {
		return
	}
	info := e.blocks.Info()
	_ = e.state.UpdateState(func(s *state.ProgressState) {
		s.TotalDeleted += out.Deleted
		s.DeletedToday += out.Deleted
		s.ErrorsEncountered += len(out.Errors)
		s.BlockDetected = info.Detected
		s.BlockCount = info.Count
		if info.LastBlockTime != nil {
			s.LastBlockTime = &state.Timestamp{Time: *info.LastBlockTime}
		}
	})
}

// DeleteItem dispatches item to the first matching handler and retries
// transient failures immediately, up to maxRetries attempts in total.
func (e *Engine) DeleteItem(ctx context.Context, page browser.Page, item Item, maxRetries int) (bool, string) {
	h, err := e.handlerFor(item)
	if err != nil {
		e.logger.WithError(err).WithField("kind", item.Kind).Warn("no handler for item")
		return false, fmt.Sprintf("No handler found for item type: %s", item.Kind)
	}
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}

	var msg string
	var lastErr error
	cfg := retry.Immediate(maxRetries)
	cfg.Context = ctx
	cfg.RetryIf = errs.IsTransient
	cfg.OnRetry = func(attempt int, err error, _ time.Duration) {
		e.logger.WarnWithFields("retrying item", map[string]interface{}{
			"handler": h.Name(),
			"attempt": attempt + 1,
			"max":     maxRetries,
			"error":   err.Error(),
		})
	}

	err = retry.Do(func(attempt int) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errs.NewPermanent("", fmt.Sprintf("Unexpected error: %v", r), nil)
			}
			lastErr = err
		}()
		msg, err = h.Delete(ctx, page, item)
		return err
	}, cfg)

	if err == nil {
		return true, msg
	}
	if lastErr == nil {
		lastErr = err
	}
	if errors.Is(err, retry.ErrMaxAttempts) {
		e.logger.WithError(lastErr).WithField("handler", h.Name()).Warn("deletion failed after retries")
	} else {
		e.logger.WithError(lastErr).WithField("handler", h.Name()).Debug("deletion failed")
	}
	if lastErr.Error() == "" {
		return false, "Deletion failed after retries"
	}
	return false, lastErr.Error()
}

func (e *Engine) handlerFor(item Item) (Handler, error) {
	for _, h := range e.handlers {
		if h.CanHandle(item) {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", errs.ErrNoHandler, item.Kind)
}
