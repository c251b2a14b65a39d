package cfblog

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestDiscardIsSilent(t *testing.T) {
	// Exercising Discard must not panic even though nothing observes it.
	Discard.Warn("should not appear anywhere")
	Discard.Debug("neither should this")
}

func TestNewWrapsSlog(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.New(slog.NewTextHandler(&buf, nil)))
	l.Warn("tolerated condition", "id", 7)

	out := buf.String()
	if !strings.Contains(out, "tolerated condition") {
		t.Errorf("log output %q missing message", out)
	}
	if !strings.Contains(out, "id=7") {
		t.Errorf("log output %q missing attribute", out)
	}
}

func TestNilLoggerFallsBackToDiscard(t *testing.T) {
	var l *Logger
	l.Warn("no panic expected")
}

func TestNewWithNilFallsBackToDiscard(t *testing.T) {
	l := New(nil)
	if l != Discard {
		t.Error("New(nil) should return Discard")
	}
}
