// Package rlog is the runner's structured logging facade: a small
// interface over log/slog that mirrors go-ethereum's log.Logger idiom —
// a Logger value threaded through constructors, with New(kv...) returning
// a child Logger carrying extra fields, rather than a package-level
// global. Swapped in for go-ethereum's own log package, which pulls in a
// chain-client dependency surface this runner has no use for.
package rlog

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the interface every component in this repo is constructed
// with, instead of reaching for a package-level logger.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	// Crit logs at error level and terminates the process — reserved for
	// startup failures the runner cannot recover from.
	Crit(msg string, kv ...any)
	New(kv ...any) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// New returns a Logger writing human-readable text to w, or os.Stderr if
// w is nil.
func New(level slog.Level, w *os.File) Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &slogLogger{l: slog.New(handler)}
}

// NewJSON returns a Logger writing structured JSON lines instead of
// human-readable text.
func NewJSON(level slog.Level, w *os.File) Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &slogLogger{l: slog.New(handler)}
}

func (s *slogLogger) Debug(msg string, kv ...any) { s.l.Debug(msg, kv...) }
func (s *slogLogger) Info(msg string, kv ...any)  { s.l.Info(msg, kv...) }
func (s *slogLogger) Warn(msg string, kv ...any)  { s.l.Warn(msg, kv...) }
func (s *slogLogger) Error(msg string, kv ...any) { s.l.Error(msg, kv...) }

func (s *slogLogger) Crit(msg string, kv ...any) {
	s.l.Log(context.Background(), slog.LevelError+4, msg, kv...)
	os.Exit(1)
}

func (s *slogLogger) New(kv ...any) Logger {
	return &slogLogger{l: s.l.With(kv...)}
}

// Discard returns a Logger that drops everything, used in tests that
// exercise components requiring a Logger but not caring about its output.
func Discard() Logger {
	return &slogLogger{l: slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 100}))}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
