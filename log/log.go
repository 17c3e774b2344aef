// Package log provides the structured, leveled logger used across the
// node. It is a thin adaptation of the logger the rest of the corpus
// builds on top of log/slog: a named logger carries a fixed set of
// context key/value pairs and every call site adds its own on top.
package log

import (
	"context"
	"log/slog"
	"os"
)

// Logger is a contextual, leveled logger.
type Logger struct {
	inner *slog.Logger
}

var root = &Logger{inner: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))}

// SetLevel adjusts the root logger's minimum level.
func SetLevel(level slog.Level) {
	root.inner = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// New creates a sub-logger carrying the given key/value context,
// mirroring a `log15.New("pkg", "node")`-style call idiom.
func New(ctx ...any) *Logger {
	return &Logger{inner: root.inner.With(ctx...)}
}

func (l *Logger) With(ctx ...any) *Logger {
	return &Logger{inner: l.inner.With(ctx...)}
}

func (l *Logger) Trace(msg string, ctx ...any) { l.inner.Log(context.Background(), slog.LevelDebug-4, msg, ctx...) }
func (l *Logger) Debug(msg string, ctx ...any) { l.inner.Debug(msg, ctx...) }
func (l *Logger) Info(msg string, ctx ...any)  { l.inner.Info(msg, ctx...) }
func (l *Logger) Warn(msg string, ctx ...any)  { l.inner.Warn(msg, ctx...) }
func (l *Logger) Error(msg string, ctx ...any) { l.inner.Error(msg, ctx...) }

// Crit logs at error level and terminates the process, matching the
// teacher's use of Crit for unrecoverable configuration/startup faults.
func (l *Logger) Crit(msg string, ctx ...any) {
	l.inner.Error(msg, ctx...)
	os.Exit(1)
}

func Trace(msg string, ctx ...any) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...any) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...any)  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...any)  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...any) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...any)  { root.Crit(msg, ctx...) }
