package loggy

import (
	"context"
	"fmt"

	"github.com/tildaslashalef/plansync/internal/ulid"
)

type contextKey string

const (
	loggerKey contextKey = "logger"
	runIDKey  contextKey = "run_id"
)

// FromContext retrieves the logger from the context
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return globalLogger
	}

	if logger, ok := ctx.Value(loggerKey).(*Logger); ok {
		return logger
	}

	return globalLogger
}

// WithLogger returns a new context with the logger attached
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// GetRunID retrieves the sync run ID from the context
func GetRunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}

	return ""
}

// WithRunID returns a new context carrying the run ID and a logger tagged with it
func WithRunID(ctx context.Context, runID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, runIDKey, runID)

	if logger := FromContext(ctx); logger != nil {
		ctx = WithLogger(ctx, logger.With("run_id", runID))
	}
	return ctx
}

// NewRunID generates a new sync run ID using ULID
func NewRunID() string {
	return ulid.RunID()
}

// WithError adds error details to a logger
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	return l.With(
		"error", err.Error(),
		"error_type", fmt.Sprintf("%T", err),
	)
}
