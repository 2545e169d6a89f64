// Package logging provides utilities for structured logging across the system.
//
// Logging is dependency-injected, never global: each component owns its own
// scoped logger, attached once at construction time via slog.With. Global
// configuration (output format, level, destination) belongs only in main().
//
// Logging is intentionally sparse: lifecycle boundaries are the intended log
// points, never tight loops (append paths, cursor iteration).
package logging

import (
	"context"
	"log/slog"
)

// discardHandler is a handler that discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that discards all output.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns the provided logger if non-nil, otherwise a discard logger.
// This is the standard pattern for optional logger parameters:
//
//	func New(logger *slog.Logger) *Component {
//	    logger = logging.Default(logger)
//	    return &Component{logger: logger.With("component", "name")}
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}
