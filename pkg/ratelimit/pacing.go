package ratelimit

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// SleepFunc pauses for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// HumanDelay draws a Gaussian delay in seconds, never shorter than minDelay.
func HumanDelay(mean, stdDev, minDelay float64) float64 {
	return humanDelay(rand.NormFloat64, mean, stdDev, minDelay)
}

func humanDelay(norm func() float64, mean, stdDev, minDelay float64) float64 {
	d := norm()*stdDev + mean
	if math.IsNaN(d) {
		return minDelay
	}
	return math.Max(minDelay, d)
}

// MicroPause sleeps a uniform random duration between minPause and maxPause.
// Handlers call it before clicks.
func MicroPause(ctx context.Context, minPause, maxPause time.Duration) error {
	if maxPause <= minPause {
		return sleepContext(ctx, minPause)
	}
	d := minPause + time.Duration(rand.Int63n(int64(maxPause-minPause)))
	return sleepContext(ctx, d)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
