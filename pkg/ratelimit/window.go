package ratelimit

import (
	"sync"
	"time"
)

// Clock returns the current time; tests substitute a fake
type Clock func() time.Time

// SlidingWindow counts events inside a trailing window. An event stays
// in the window while now-t is strictly less than the window size.
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         Clock
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return NewSlidingWindowWithClock(maxRequests, windowSize, time.Now)
}

// NewSlidingWindowWithClock is NewSlidingWindow with an injectable clock
func NewSlidingWindowWithClock(maxRequests int, windowSize time.Duration, clock Clock) *SlidingWindow {
	if clock == nil {
		clock = time.Now
	}
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         clock,
	}
}

// Record adds an event unconditionally
func (sw *SlidingWindow) Record() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = append(sw.requests, sw.now())
}

// Count prunes expired events and returns how many remain
func (sw *SlidingWindow) Count() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.cleanOldRequests(sw.now())
	return len(sw.requests)
}

// Max returns the configured capacity
func (sw *SlidingWindow) Max() int {
	return sw.maxRequests
}

// Oldest returns the earliest event still in the window
func (sw *SlidingWindow) Oldest() (time.Time, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.cleanOldRequests(sw.now())
	if len(sw.requests) == 0 {
		return time.Time{}, false
	}
	return sw.requests[0], true
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}
