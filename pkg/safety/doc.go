// Package safety detects platform blocks and manages the cool-down and
// pacing escalation that follows one.
package safety
