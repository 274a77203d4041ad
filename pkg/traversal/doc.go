// Package traversal walks a user's Activity Log on mbasic.facebook.com
// from the newest eligible month back to the oldest, following "See More"
// pagination, and resumes from a saved position.
package traversal
