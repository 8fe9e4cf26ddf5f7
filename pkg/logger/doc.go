// Package logger wraps zerolog behind a small structured-logging interface.
//
// Components receive a Logger instead of reaching for a global, which lets
// tests swap in NewTestLogger or NewNopLogger:
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("resource", "following").Info("Collection started")
//
// When LoggingConfig.File is set, entries are written to the console and
// appended to the file as JSON lines.
package logger
