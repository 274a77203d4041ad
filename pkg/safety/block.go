package safety

import (
	"context"
	"math"
	"sync"
	"time"

	"fbcleanup/pkg/browser"
	"fbcleanup/pkg/config"
	"fbcleanup/pkg/logger"
)

// stdDevBackoff is the flat per-call growth of delay variance after a block
const stdDevBackoff = 1.2

// Pacer is the part of the rate limiter that backoff adjusts
type Pacer interface {
	Pacing() (mean, stdDev float64)
	SetPacing(mean, stdDev float64)
}

// BlockInfo is a read-only snapshot of block state
type BlockInfo struct {
	Detected          bool       `json:"block_detected"`
	LastBlockTime     *time.Time `json:"last_block_time"`
	HoursSinceBlock   *float64   `json:"hours_since_block"`
	Count             int        `json:"block_count"`
	WaitHours         float64    `json:"block_wait_hours"`
	BackoffMultiplier float64    `json:"backoff_multiplier"`
	CanContinue       bool       `json:"can_continue"`
	// ResumeAt is when the current cool-down ends; nil when not blocked
	ResumeAt *time.Time `json:"resume_at"`
}

// BlockManager holds cool-down state after a detected block.
//
// The cool-down is a flat WaitHours regardless of how many blocks occurred.
// Escalation lives in ApplyBackoff, which slows pacing by
// BackoffMultiplier^count on every call.
type BlockManager struct {
	mu sync.Mutex

	WaitHours         float64
	BackoffMultiplier float64

	detected      bool
	lastBlockTime *time.Time
	count         int

	now    func() time.Time
	logger logger.Logger
}

// NewBlockManager creates a manager; zero values take 24h and 1.5
func NewBlockManager(waitHours, backoffMultiplier float64) *BlockManager {
	if waitHours <= 0 {
		waitHours = 24
	}
	if backoffMultiplier <= 0 {
		backoffMultiplier = 1.5
	}
	m := &BlockManager{
		WaitHours:         waitHours,
		BackoffMultiplier: backoffMultiplier,
		now:               time.Now,
		logger:            logger.GetLogger(),
	}
	m.logger.InfoWithFields("block manager initialized", map[string]interface{}{
		"wait_hours":         waitHours,
		"backoff_multiplier": backoffMultiplier,
	})
	return m
}

// NewBlockManagerFromConfig uses the safety section of the config
func NewBlockManagerFromConfig(s config.SafetyConfig) *BlockManager {
	return NewBlockManager(s.BlockWaitHours, s.BackoffMultiplier)
}

// WithClock replaces the time source
func (m *BlockManager) WithClock(now func() time.Time) *BlockManager {
	m.now = now
	return m
}

// WithLogger sets the logger
func (m *BlockManager) WithLogger(l logger.Logger) *BlockManager {
	m.logger = logger.OrGlobal(l)
	return m
}

// CheckAndHandleBlock runs detector against page. A positive result marks
// the manager blocked as of now and increments the lifetime count, even
// when already blocked.
func (m *BlockManager) CheckAndHandleBlock(ctx context.Context, page browser.Page, detector *ErrorDetector) bool {
	if detector == nil {
		detector = NewErrorDetector()
	}

	found, message := detector.CheckForErrors(ctx, page)
	if !found {
		return false
	}

	m.mu.Lock()
	now := m.now()
	m.detected = true
	m.lastBlockTime = &now
	m.count++
	count := m.count
	resumeAt := now.Add(m.wait())
	m.mu.Unlock()

	logger.LogBlock(m.logger, message, count, resumeAt)
	return true
}

func (m *BlockManager) wait() time.Duration {
	return time.Duration(m.WaitHours * float64(time.Hour))
}

// ShouldContinue is false only while a detected block is inside its wait period
func (m *BlockManager) ShouldContinue() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shouldContinue(true)
}

func (m *BlockManager) shouldContinue(log bool) bool {
	if !m.detected || m.lastBlockTime == nil {
		return true
	}

	since := m.now().Sub(*m.lastBlockTime)
	if since < m.wait() {
		if log {
			m.logger.WarnWithFields("block still active", map[string]interface{}{
				"remaining_hours": (m.wait() - since).Hours(),
				"wait_hours":      m.WaitHours,
			})
		}
		return false
	}

	if log {
		m.logger.InfoWithFields("block wait period expired", map[string]interface{}{
			"hours_since_block": since.Hours(),
		})
	}
	return true
}

// ApplyBackoff scales the limiter's current mean delay by
// BackoffMultiplier^count and its deviation by 1.2. It compounds across
// calls and does nothing before the first block.
func (m *BlockManager) ApplyBackoff(p Pacer) {
	m.mu.Lock()
	count := m.count
	mult := m.BackoffMultiplier
	m.mu.Unlock()

	if count == 0 || p == nil {
		return
	}

	factor := math.Pow(mult, float64(count))
	oldMean, oldStd := p.Pacing()
	newMean, newStd := oldMean*factor, oldStd*stdDevBackoff
	p.SetPacing(newMean, newStd)

	m.logger.WarnWithFields("applied backoff", map[string]interface{}{
		"block_count": count,
		"factor":      factor,
		"mean_before": oldMean,
		"mean_after":  newMean,
		"std_before":  oldStd,
		"std_after":   newStd,
	})
}

// Reset clears the cool-down but keeps the lifetime count
func (m *BlockManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detected = false
	m.lastBlockTime = nil
	m.logger.Debug("block status reset")
}

// Restore seeds the manager from persisted progress. at may be nil when the
// time of the last block is unknown, in which case the gate stays open.
func (m *BlockManager) Restore(detected bool, count int, at *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detected = detected
	if count > m.count {
		m.count = count
	}
	if at != nil {
		t := *at
		m.lastBlockTime = &t
	}
}

// Detected reports whether a block has been seen and not reset
func (m *BlockManager) Detected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detected
}

// Count returns the lifetime number of detected blocks
func (m *BlockManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Info returns a snapshot of block state
func (m *BlockManager) Info() BlockInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := BlockInfo{
		Detected:          m.detected,
		Count:             m.count,
		WaitHours:         m.WaitHours,
		BackoffMultiplier: m.BackoffMultiplier,
		CanContinue:       m.shouldContinue(false),
	}
	if m.lastBlockTime != nil {
		t := *m.lastBlockTime
		hours := m.now().Sub(t).Hours()
		info.LastBlockTime = &t
		info.HoursSinceBlock = &hours
		if m.detected {
			resume := t.Add(m.wait())
			info.ResumeAt = &resume
		}
	}
	return info
}
