// Package state persists the resumable progress record.
//
// Writes are atomic: content goes to <path>.tmp, is fsynced, and renamed
// over <path>; the previous version is kept as <path>.bak. A file that is
// missing, empty, malformed, or foreign loads as nil and the caller starts
// from DefaultState. Save failures are logged and never abort a run.
package state
