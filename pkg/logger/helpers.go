package logger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// LogRateLimit logs the hourly window when the limiter refuses an action
func LogRateLimit(l Logger, used, max int) {
	OrGlobal(l).WithFields(map[string]interface{}{
		"window_used": used,
		"window_max":  max,
		"action":      "rate_limited",
	}).Warn("Hourly action limit reached, stopping batch")
}

// LogBlock logs a confirmed platform block
func LogBlock(l Logger, reason string, count int, resumeAt interface{}) {
	OrGlobal(l).WithFields(map[string]interface{}{
		"reason":      reason,
		"block_count": count,
		"resume_at":   resumeAt,
	}).Error("Platform block detected")
}

// LogBatch logs the outcome of processing one Activity Log page
func LogBatch(l Logger, year, month, page, deleted, failed, skipped, errs int) {
	OrGlobal(l).WithFields(map[string]interface{}{
		"year":    year,
		"month":   month,
		"page":    page,
		"deleted": deleted,
		"failed":  failed,
		"skipped": skipped,
		"errors":  errs,
	}).Info(fmt.Sprintf("Page %04d-%02d #%d complete", year, month, page))
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (n nopLogger) Debug(string)                                   {}
func (n nopLogger) Info(string)                                    {}
func (n nopLogger) Warn(string)                                    {}
func (n nopLogger) Error(string)                                   {}
func (n nopLogger) Fatal(string)                                   {}
func (n nopLogger) WithField(string, interface{}) Logger           { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger       { return n }
func (n nopLogger) WithError(error) Logger                         { return n }
func (n nopLogger) WithContext(context.Context) Logger             { return n }
func (n nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (n nopLogger) InfoWithFields(string, map[string]interface{})  {}
func (n nopLogger) WarnWithFields(string, map[string]interface{})  {}
func (n nopLogger) ErrorWithFields(string, map[string]interface{}) {}
func (n nopLogger) FatalWithFields(string, map[string]interface{}) {}
func (n nopLogger) GetZerolog() *zerolog.Logger                    { return nil }
