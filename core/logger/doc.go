// Package logger provides structured logging utilities built on Go's standard
// slog package: a factory with environment presets and a set of pre-built,
// nil-safe attribute helpers for common logging scenarios.
//
// Basic usage:
//
//	log := logger.New(
//		logger.WithProduction("cnts-messaging-svc"),
//	)
//
//	log.Info("server starting",
//		logger.Component("server"),
//		logger.Event("startup"),
//	)
//
// Environment presets:
//
//	// Development: text format, debug level, stdout
//	devLogger := logger.New(logger.WithDevelopment("myapp"))
//
//	// Production: JSON format, info level, stdout
//	prodLogger := logger.New(logger.WithProduction("myapp"))
//
// Capture logs during testing:
//
//	var buf bytes.Buffer
//	log := logger.New(
//		logger.WithJSONFormatter(),
//		logger.WithOutput(&buf),
//	)
package logger
