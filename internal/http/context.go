package http

import (
	"context"
	"log/slog"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/logging"
	"github.com/example/taskboard/internal/token"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	identityContextKey  contextKey = "identity"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithIdentity stores the verified token the principal authenticated with.
func ContextWithIdentity(ctx context.Context, identity token.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext returns the verified token stored by the auth middleware.
func IdentityFromContext(ctx context.Context) (token.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(token.Identity)
	return identity, ok
}

// ContextWithLogger attaches a request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.OrDefault(logger)
}

func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, fallback, "handler", handlerName, operation, attrs...)
}
