package logging

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// ContextWithLogger returns a derived context that carries the provided logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger attached to ctx, or nil.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(contextKey{}).(*slog.Logger)
	return logger
}

// OrDefault returns logger, or slog.Default when it is nil.
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// WithAttrs returns a context whose request logger also carries attrs. It is a no-op
// when ctx has no logger.
func WithAttrs(ctx context.Context, attrs ...any) context.Context {
	logger := FromContext(ctx)
	if logger == nil || len(attrs) == 0 {
		return ctx
	}
	return ContextWithLogger(ctx, logger.With(attrs...))
}

// Scoped returns the request logger from ctx, falling back to fallback, tagged with the
// component that is logging. kind is the attribute key ("service", "handler") and name
// its value, e.g. Scoped(ctx, base, "service", "TaskService", "Claim", "task_id", id).
func Scoped(ctx context.Context, fallback *slog.Logger, kind, name, operation string, attrs ...any) *slog.Logger {
	logger := FromContext(ctx)
	if logger == nil {
		logger = OrDefault(fallback)
	}

	pairs := make([]any, 0, 4+len(attrs))
	pairs = append(pairs, kind, name)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	pairs = append(pairs, attrs...)
	return logger.With(pairs...)
}
