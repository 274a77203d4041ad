// Package ratelimit paces destructive actions.
//
// RateLimiter combines two controls:
//   - a hard cap of MaxPerHour actions over a trailing one-hour SlidingWindow
//   - a Gaussian delay before every action, clamped below at MinDelay
//
// Every attempt is recorded, successful or not, so failed retries still
// consume budget.
//
//	rl := ratelimit.New(ratelimit.DefaultConfig())
//	ok, err := rl.WaitBeforeAction(ctx)
//	if err != nil || !ok {
//	    // stop the batch
//	}
//	doAction()
//	rl.RecordAction()
package ratelimit
