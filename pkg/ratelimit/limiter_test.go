package ratelimit

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"fbcleanup/pkg/config"
	"fbcleanup/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

func newTestLimiter(limit int) (*RateLimiter, *fakeClock, *sleepRecorder, *logger.TestLogger) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	sleeper := &sleepRecorder{}
	log := logger.NewTestLogger()
	rl := New(Config{
		MaxPerHour: limit,
		Clock:      clock.Now,
		Sleep:      sleeper.Sleep,
		Rand:       rand.New(rand.NewSource(1)),
		Logger:     log,
	})
	return rl, clock, sleeper, log
}

func TestSlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	sw := NewSlidingWindowWithClock(3, time.Second, clock.Now)

	for i := 0; i < 3; i++ {
		sw.Record()
		clock.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, 3, sw.Count())
	assert.Equal(t, 3, sw.Max())

	oldest, ok := sw.Oldest()
	require.True(t, ok)
	assert.Equal(t, time.Unix(0, 0), oldest)

	// an event leaves once a full window has passed
	clock.Advance(700 * time.Millisecond)
	assert.Equal(t, 2, sw.Count())
	oldest, _ = sw.Oldest()
	assert.Equal(t, time.Unix(0, 0).Add(100*time.Millisecond), oldest)

	sw.Reset()
	assert.Equal(t, 0, sw.Count())
	_, ok = sw.Oldest()
	assert.False(t, ok)
}

// The cap refuses iff the trailing hour already holds MaxPerHour actions.
func TestCheckRateLimitMatchesTrailingHourCount(t *testing.T) {
	const limit = 5
	rl, clock, _, _ := newTestLimiter(limit)
	r := rand.New(rand.NewSource(42))

	var recorded []time.Time
	for step := 0; step < 400; step++ {
		clock.Advance(time.Duration(r.Intn(1800)) * time.Second)
		if r.Intn(2) == 0 {
			rl.RecordAction()
			recorded = append(recorded, clock.Now())
		}

		inWindow := 0
		for _, ts := range recorded {
			if clock.Now().Sub(ts) < time.Hour {
				inWindow++
			}
		}

		assert.Equal(t, inWindow < limit, rl.CheckRateLimit(), "step %d with %d in window", step, inWindow)
	}
}

func TestCheckRateLimitBoundary(t *testing.T) {
	rl, clock, _, _ := newTestLimiter(1)

	rl.RecordAction()
	assert.False(t, rl.CheckRateLimit())

	clock.Advance(time.Hour - time.Nanosecond)
	assert.False(t, rl.CheckRateLimit())

	clock.Advance(time.Nanosecond)
	assert.True(t, rl.CheckRateLimit())
}

func TestSoftWarningLoggedOnce(t *testing.T) {
	rl, clock, _, log := newTestLimiter(10)

	for i := 0; i < 9; i++ {
		rl.RecordAction()
	}
	rl.CheckRateLimit()
	rl.CheckRateLimit()
	assert.Equal(t, 1, log.Count("WARN", "approaching rate limit"))

	clock.Advance(time.Hour)
	rl.CheckRateLimit()
	for i := 0; i < 8; i++ {
		rl.RecordAction()
	}
	rl.CheckRateLimit()
	assert.Equal(t, 2, log.Count("WARN", "approaching rate limit"))
}

func TestHumanDelayNeverBelowMinimum(t *testing.T) {
	cases := []struct{ mean, std, min float64 }{
		{5, 1.5, 2},
		{0, 1, 2},
		{-10, 3, 0.5},
		{1, 50, 1},
		{3, 0, 3},
	}
	for _, tc := range cases {
		for i := 0; i < 1000; i++ {
			d := HumanDelay(tc.mean, tc.std, tc.min)
			if d < tc.min {
				t.Fatalf("HumanDelay(%v, %v, %v) = %v, below minimum", tc.mean, tc.std, tc.min, d)
			}
		}
	}
}

func TestWaitBeforeActionSleepsWithinBounds(t *testing.T) {
	rl, _, sleeper, _ := newTestLimiter(50)

	for i := 0; i < 20; i++ {
		ok, err := rl.WaitBeforeAction(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.Len(t, sleeper.calls, 20)
	for _, d := range sleeper.calls {
		assert.GreaterOrEqual(t, d, 2*time.Second)
	}
}

// Two recorded actions under a cap of two: the third wait refuses without sleeping.
func TestWaitBeforeActionRefusesAtCapWithoutSleeping(t *testing.T) {
	rl, _, sleeper, log := newTestLimiter(2)

	for i := 0; i < 2; i++ {
		ok, err := rl.WaitBeforeAction(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		rl.RecordAction()
	}
	require.Len(t, sleeper.calls, 2)

	ok, err := rl.WaitBeforeAction(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, sleeper.calls, 2)
	assert.True(t, log.HasMessage("Hourly action limit reached"))
}

func TestWaitBeforeActionCancelled(t *testing.T) {
	rl := New(Config{MeanDelay: 60, MinDelay: 30, Logger: logger.NewNopLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := rl.WaitBeforeAction(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatsAndPacing(t *testing.T) {
	rl, clock, _, _ := newTestLimiter(50)

	rl.RecordAction()
	rl.RecordAction()
	clock.Advance(2 * time.Hour)
	rl.RecordAction()

	stats := rl.Stats()
	assert.Equal(t, 50, stats.MaxPerHour)
	assert.Equal(t, 1, stats.ActionsLastHour)
	assert.Equal(t, 3, stats.TotalActions)
	assert.Equal(t, 5.0, stats.MeanDelay)

	rl.SetPacing(7.5, 1.8)
	mean, std := rl.Pacing()
	assert.Equal(t, 7.5, mean)
	assert.Equal(t, 1.8, std)

	rl.Reset()
	assert.Equal(t, 0, rl.Stats().TotalActions)
	assert.Equal(t, 0, rl.Stats().ActionsLastHour)
}

func TestConfigFromSafety(t *testing.T) {
	cfg := ConfigFromSafety(config.SafetyConfig{MaxDeletionsPerHour: 20, MeanDelaySeconds: 8})
	assert.Equal(t, 20, cfg.MaxPerHour)
	assert.Equal(t, 8.0, cfg.MeanDelay)
	assert.Equal(t, 1.5, cfg.StdDev)
	assert.Equal(t, 2.0, cfg.MinDelay)
}

func TestMicroPause(t *testing.T) {
	start := time.Now()
	require.NoError(t, MicroPause(context.Background(), 5*time.Millisecond, 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestWaitForCapacity(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	var slept []time.Duration
	rl := New(Config{
		MaxPerHour: 2,
		Clock:      clock.Now,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			clock.Advance(d)
			return nil
		},
		Logger: logger.NewNopLogger(),
	})

	waited, err := rl.WaitForCapacity(context.Background())
	require.NoError(t, err)
	assert.Zero(t, waited)

	rl.RecordAction()
	clock.Advance(10 * time.Minute)
	rl.RecordAction()

	waited, err = rl.WaitForCapacity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50*time.Minute, waited)
	assert.Equal(t, []time.Duration{50 * time.Minute}, slept)
	assert.True(t, rl.CheckRateLimit())
}

func TestWaitForCapacityCancelled(t *testing.T) {
	rl := New(Config{MaxPerHour: 1, Logger: logger.NewNopLogger()})
	rl.RecordAction()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rl.WaitForCapacity(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
