package memlayer

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with memlayer-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// LogReserve logs a reservation of memory from the operating system.
func (l *Logger) LogReserve(ctx context.Context, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "reserve failed",
			"bytes", bytes,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "reserve completed",
			"bytes", bytes,
		)
	}
}

// LogCarve logs an allocator or scratch set carved from the backing arena.
func (l *Logger) LogCarve(ctx context.Context, component string, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "carve failed",
			"component", component,
			"bytes", bytes,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "carve completed",
			"component", component,
			"bytes", bytes,
		)
	}
}

// LogRelease logs memory returned to the operating system.
func (l *Logger) LogRelease(ctx context.Context, bytes int, err error) {
	if err != nil {
		l.WarnContext(ctx, "release failed",
			"bytes", bytes,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "release completed",
			"bytes", bytes,
		)
	}
}

// LogScratchMiss logs a scratch request that found every arena in conflict.
func (l *Logger) LogScratchMiss(ctx context.Context, conflicts int) {
	l.DebugContext(ctx, "no scratch arena available",
		"conflicts", conflicts,
	)
}

// LogHighWater logs a backing arena filled beyond the configured mark.
func (l *Logger) LogHighWater(ctx context.Context, position, capacity int) {
	l.WarnContext(ctx, "backing arena above high-water mark",
		"position", position,
		"capacity", capacity,
		"usage", float64(position)/float64(capacity),
	)
}
