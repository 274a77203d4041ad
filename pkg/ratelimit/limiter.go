package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"fbcleanup/pkg/config"
	"fbcleanup/pkg/logger"
)

const (
	// Window is the trailing period the hourly cap is measured over
	Window = time.Hour

	softWarnRatio = 0.8
)

// Config holds pacing parameters. Delays are in seconds.
type Config struct {
	MaxPerHour int
	MeanDelay  float64
	StdDev     float64
	MinDelay   float64

	Clock  Clock
	Sleep  SleepFunc
	Rand   *rand.Rand
	Logger logger.Logger
}

// DefaultConfig returns 50 actions per hour paced around 5s
func DefaultConfig() Config {
	return Config{
		MaxPerHour: 50,
		MeanDelay:  5.0,
		StdDev:     1.5,
		MinDelay:   2.0,
	}
}

// ConfigFromSafety maps the safety section of the application config
func ConfigFromSafety(s config.SafetyConfig) Config {
	cfg := DefaultConfig()
	if s.MaxDeletionsPerHour > 0 {
		cfg.MaxPerHour = s.MaxDeletionsPerHour
	}
	if s.MeanDelaySeconds > 0 {
		cfg.MeanDelay = s.MeanDelaySeconds
	}
	if s.DelayStdDev > 0 {
		cfg.StdDev = s.DelayStdDev
	}
	if s.MinDelaySeconds > 0 {
		cfg.MinDelay = s.MinDelaySeconds
	}
	return cfg
}

// Stats is an observability snapshot of the limiter
type Stats struct {
	MaxPerHour      int     `json:"max_per_hour"`
	ActionsLastHour int     `json:"actions_last_hour"`
	TotalActions    int     `json:"total_actions"`
	MeanDelay       float64 `json:"mean_delay"`
	StdDev          float64 `json:"std_dev"`
	MinDelay        float64 `json:"min_delay"`
}

// RateLimiter caps actions per trailing hour and paces each one with a
// Gaussian delay.
type RateLimiter struct {
	mu sync.Mutex

	window   *SlidingWindow
	total    int
	mean     float64
	stdDev   float64
	minDelay float64
	warned   bool

	sleep  SleepFunc
	rng    *rand.Rand
	logger logger.Logger
}

// New creates a RateLimiter. Zero-valued parameters take the defaults.
func New(cfg Config) *RateLimiter {
	def := DefaultConfig()
	if cfg.MaxPerHour <= 0 {
		cfg.MaxPerHour = def.MaxPerHour
	}
	if cfg.MeanDelay <= 0 {
		cfg.MeanDelay = def.MeanDelay
	}
	if cfg.StdDev <= 0 {
		cfg.StdDev = def.StdDev
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = def.MinDelay
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}

	rl := &RateLimiter{
		window:   NewSlidingWindowWithClock(cfg.MaxPerHour, Window, cfg.Clock),
		mean:     cfg.MeanDelay,
		stdDev:   cfg.StdDev,
		minDelay: cfg.MinDelay,
		sleep:    cfg.Sleep,
		rng:      cfg.Rand,
		logger:   logger.OrGlobal(cfg.Logger),
	}

	rl.logger.InfoWithFields("rate limiter initialized", map[string]interface{}{
		"max_per_hour": cfg.MaxPerHour,
		"mean_delay":   cfg.MeanDelay,
		"std_dev":      cfg.StdDev,
		"min_delay":    cfg.MinDelay,
	})
	return rl
}

// CheckRateLimit prunes the window and reports whether another action fits
// under the hourly cap.
func (rl *RateLimiter) CheckRateLimit() bool {
	used := rl.window.Count()
	limit := rl.window.Max()

	if used >= limit {
		logger.LogRateLimit(rl.logger, used, limit)
		return false
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if used >= int(float64(limit)*softWarnRatio) {
		if !rl.warned {
			rl.warned = true
			rl.logger.WarnWithFields("approaching rate limit", map[string]interface{}{
				"actions_last_hour": used,
				"max_per_hour":      limit,
			})
		}
	} else {
		rl.warned = false
	}
	return true
}

// WaitBeforeAction returns false without sleeping when the hourly cap is
// reached. Otherwise it sleeps a human-like delay and returns true.
func (rl *RateLimiter) WaitBeforeAction(ctx context.Context) (bool, error) {
	if !rl.CheckRateLimit() {
		return false, nil
	}

	rl.mu.Lock()
	delay := rl.nextDelay()
	mean, std := rl.mean, rl.stdDev
	rl.mu.Unlock()

	rl.logger.DebugWithFields("waiting before action", map[string]interface{}{
		"delay_seconds": delay,
		"mean":          mean,
		"std_dev":       std,
	})

	if err := rl.sleep(ctx, seconds(delay)); err != nil {
		return false, err
	}
	return true, nil
}

func (rl *RateLimiter) nextDelay() float64 {
	norm := rand.NormFloat64
	if rl.rng != nil {
		norm = rl.rng.NormFloat64
	}
	return humanDelay(norm, rl.mean, rl.stdDev, rl.minDelay)
}

// RecordAction counts one attempted action, successful or not.
func (rl *RateLimiter) RecordAction() {
	rl.window.Record()

	rl.mu.Lock()
	rl.total++
	total := rl.total
	rl.mu.Unlock()

	rl.logger.DebugWithFields("action recorded", map[string]interface{}{
		"total":     total,
		"last_hour": rl.window.Count(),
	})
}

// Pacing returns the current mean and standard deviation in seconds
func (rl *RateLimiter) Pacing() (mean, stdDev float64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.mean, rl.stdDev
}

// SetPacing replaces the delay parameters in place
func (rl *RateLimiter) SetPacing(mean, stdDev float64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.mean = mean
	rl.stdDev = stdDev
}

// Stats returns the current window usage and parameters
func (rl *RateLimiter) Stats() Stats {
	used := rl.window.Count()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	return Stats{
		MaxPerHour:      rl.window.Max(),
		ActionsLastHour: used,
		TotalActions:    rl.total,
		MeanDelay:       rl.mean,
		StdDev:          rl.stdDev,
		MinDelay:        rl.minDelay,
	}
}

// Reset clears the window and the lifetime counter
func (rl *RateLimiter) Reset() {
	rl.window.Reset()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.total = 0
	rl.warned = false
	rl.logger.Debug("rate limiter reset")
}

// WaitForCapacity blocks until the hourly window has room for another
// action, returning the time spent waiting.
func (rl *RateLimiter) WaitForCapacity(ctx context.Context) (time.Duration, error) {
	var waited time.Duration
	for rl.window.Count() >= rl.window.Max() {
		oldest, ok := rl.window.Oldest()
		if !ok {
			break
		}
		d := oldest.Add(Window).Sub(rl.window.now())
		if d <= 0 {
			d = time.Second
		}
		rl.logger.Info(fmt.Sprintf("hourly cap reached, waiting %s for the window to free up", d.Round(time.Second)))
		if err := rl.sleep(ctx, d); err != nil {
			return waited, err
		}
		waited += d
	}
	return waited, nil
}
