// Package stats keeps the running totals of a cleanup run and renders the
// summary and report.
package stats
