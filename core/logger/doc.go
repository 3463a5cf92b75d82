// Package logger provides structured logging utilities built on Go's standard slog package.
//
// New builds a *slog.Logger from options. Environment presets set format and
// level in one call:
//
//	log := logger.New(logger.WithDevelopment("fleetd"))             // text, debug
//	log := logger.New(logger.WithProduction("fleetd"))              // JSON, info
//	log := logger.New(logger.WithLevel(slog.LevelWarn), logger.WithJSONFormatter())
//
// Context extractors copy request-scoped values into every *Context call:
//
//	log := logger.New(
//		logger.WithProduction("fleetd"),
//		logger.WithContextExtractors(session.LogAttr),
//	)
//
// # Attribute Helpers
//
// Helpers return an empty slog.Attr for nil or empty input, so they can be
// passed unconditionally:
//
//	log.ErrorContext(ctx, "session validation failed",
//		logger.Component("session"),
//		logger.SessionID(id),
//		logger.Error(err),
//	)
//
// Components that accept a logger default to Nop when none is given.
package logger
