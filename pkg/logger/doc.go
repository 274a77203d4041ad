// Package logger provides the structured logging interface used across fbcleanup.
//
// It wraps zerolog behind a small Logger interface so components can take a
// logger through their constructors and tests can swap in NewNopLogger or a
// capturing NewTestLogger.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil { ... }
//	log := logger.GetLogger().WithField("component", "deletion")
//	log.InfoWithFields("Page processed", map[string]interface{}{"deleted": 3})
//
// Console output uses abbreviated coloured levels (DEBG, INFO, WARN, ERRO, FATL).
// When LoggingConfig.File is set, entries are also appended to that file as JSON.
package logger
