// Package cfblog provides the structured, per-handle diagnostic logger
// used by the olecf engine. Verbosity is scoped to a single value
// carried on each open file rather than any global state.
package cfblog

import (
	"context"
	"log/slog"
)

// Logger is the diagnostic sink consulted for the engine's documented
// "verbose mode" conditions: MSAT count/identifier mismatches, a root
// storage that isn't the first directory entry, and out-of-range
// directory sibling/child ids.
type Logger struct {
	slog *slog.Logger
}

// Discard is the default logger installed when the caller supplies none.
// Its calls are no-ops.
var Discard = &Logger{slog: slog.New(discardHandler{})}

// New wraps an existing *slog.Logger for use as an engine diagnostic sink.
func New(l *slog.Logger) *Logger {
	if l == nil {
		return Discard
	}
	return &Logger{slog: l}
}

// Warn emits a verbose-mode diagnostic. args are slog key/value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	if l == nil {
		Discard.slog.Warn(msg, args...)
		return
	}
	l.slog.Warn(msg, args...)
}

// Debug emits a fine-grained trace message (sector reads, chain walks).
func (l *Logger) Debug(msg string, args ...any) {
	if l == nil {
		Discard.slog.Debug(msg, args...)
		return
	}
	l.slog.Debug(msg, args...)
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
