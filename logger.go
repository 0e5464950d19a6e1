package coldb

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with coldb-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithDocumentType adds a document_type field to the logger.
func (l *Logger) WithDocumentType(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("document_type", name),
	}
}

// LogFlush logs a store-wide flush.
func (l *Logger) LogFlush(ctx context.Context, containers int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed",
			"containers", containers,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "flush completed",
			"containers", containers,
			"duration", duration,
		)
	}
}

// LogLoad logs the load of one container.
func (l *Logger) LogLoad(ctx context.Context, name string, slots int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"document_type", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "load completed",
			"document_type", name,
			"slots", slots,
		)
	}
}

// LogCompaction logs a store-wide compaction.
func (l *Logger) LogCompaction(ctx context.Context, before, after int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "compaction failed",
			"slots_before", before,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "compaction completed",
			"slots_before", before,
			"slots_after", after,
		)
	}
}

// LogBroken logs a container entering the broken state.
func (l *Logger) LogBroken(ctx context.Context, name string, err error) {
	l.ErrorContext(ctx, "container broken",
		"document_type", name,
		"error", err,
	)
}
