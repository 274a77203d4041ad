// Package dates parses the relative and partial timestamps printed next to
// Activity Log entries.
package dates
