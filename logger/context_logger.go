package logger

import (
	"context"
	"log/slog"
	"time"
)

// ContextKey is the type for context keys used in logging
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	OperationKey ContextKey = "operation"

	// Catalog context keys, namespaced like OpenTelemetry attributes.
	EntityTypeKey ContextKey = "catalog.entity.type"
	EntityIDKey   ContextKey = "catalog.entity.id"
	SyncRunIDKey  ContextKey = "catalog.sync.run_id"
	SourceKey     ContextKey = "catalog.source"
)

var contextKeys = []ContextKey{
	RequestIDKey,
	OperationKey,
	EntityTypeKey,
	EntityIDKey,
	SyncRunIDKey,
	SourceKey,
}

// GlobalContext is the global ContextLogger instance
var GlobalContext = NewContextLogger(Logger)

// ContextLogger wraps a slog.Logger to add context-aware logging
type ContextLogger struct {
	logger *slog.Logger
}

func NewContextLogger(logger *slog.Logger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

// WithContext returns a logger carrying every known key present in ctx.
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	args := make([]any, 0, 2*len(contextKeys))
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			args = append(args, string(key), v)
		}
	}
	return cl.logger.With(args...)
}

// LogDuration logs an operation completion with duration in milliseconds
func (cl *ContextLogger) LogDuration(ctx context.Context, operation string, durationMs int64) {
	cl.WithContext(ctx).Info("operation completed",
		"operation", operation,
		"duration_ms", durationMs,
	)
}

// LogError logs an operation failure with error details
func (cl *ContextLogger) LogError(ctx context.Context, operation string, err error) {
	cl.WithContext(ctx).Error("operation failed",
		"operation", operation,
		"error", err,
	)
}

// LogDurationTime is a convenience function that takes time.Duration
func (cl *ContextLogger) LogDurationTime(ctx context.Context, operation string, duration time.Duration) {
	cl.LogDuration(ctx, operation, duration.Milliseconds())
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFrom returns the request id stored in ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, OperationKey, op)
}

// WithEntity tags ctx with the entity kind and id being indexed.
func WithEntity(ctx context.Context, entityType, id string) context.Context {
	ctx = context.WithValue(ctx, EntityTypeKey, entityType)
	return context.WithValue(ctx, EntityIDKey, id)
}

func WithSyncRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, SyncRunIDKey, runID)
}

func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, SourceKey, source)
}
