// Package logging provides the structured logger used across lookalike.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with helpers for the events the service emits.
type Logger struct {
	*slog.Logger
}

// New builds a logger writing to w. format is "text" or "json".
func New(w io.Writer, format string, level slog.Level) (*Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return &Logger{Logger: slog.New(handler)}, nil
}

// Noop returns a logger that discards everything.
func Noop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// With returns a logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// LogCatalogLoad logs the outcome of loading a catalog.
func (l *Logger) LogCatalogLoad(ctx context.Context, source string, rows, dim int, checksum string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "catalog load failed",
			"source", source,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "catalog loaded",
		"source", source,
		"rows", rows,
		"dimension", dim,
		"checksum", checksum,
	)
}

// LogReload logs a catalog reload attempt.
func (l *Logger) LogReload(ctx context.Context, trigger, source string, rows int, err error) {
	if err != nil {
		l.WarnContext(ctx, "catalog reload failed, keeping current catalog",
			"trigger", trigger,
			"source", source,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "catalog reloaded",
		"trigger", trigger,
		"source", source,
		"rows", rows,
	)
}

// LogMatch logs a completed or rejected match request.
func (l *Logger) LogMatch(ctx context.Context, queries, k int, unknown int, elapsed time.Duration, err error) {
	if err != nil {
		l.DebugContext(ctx, "match rejected",
			"queries", queries,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "match completed",
		"queries", queries,
		"k", k,
		"unknown", unknown,
		"elapsed", elapsed,
	)
}
