// Package deletion finds deletable items on an activity log page and
// removes them one at a time.
//
// The Engine asks the block manager and rate limiter before every action,
// dispatches each item to the first Handler that accepts it, and stops the
// batch as soon as the page shows a block. Handler errors carry an
// errors.Kind; only Transient failures are retried.
package deletion
