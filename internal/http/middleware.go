package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/logging"
	"github.com/example/taskboard/internal/token"
)

// RequestIDHeader carries the request id in and out of the service.
const RequestIDHeader = "X-Request-ID"

// Authenticator resolves a bearer token into the calling principal.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (application.Principal, token.Identity, error)
	AuthenticateOptional(ctx context.Context, raw string) (*application.Principal, token.Identity, error)
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractTokenFromRequest(r)
			if raw == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, "UNAUTHENTICATED", errMissingToken)
				return
			}

			principal, identity, err := auth.Authenticate(r.Context(), raw)
			if err != nil {
				handlerLogger(r.Context(), logger, "Middleware", "RequireAuth").
					WarnContext(r.Context(), "token rejected", "error", err, "error_kind", application.ErrorKind(err))
				responder.handleServiceError(r.Context(), w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), principal, identity)))
		})
	}
}

// OptionalAuth attaches the principal when a bearer token is present and lets anonymous
// requests through unchanged. A token that fails verification is rejected.
func OptionalAuth(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, identity, err := auth.AuthenticateOptional(r.Context(), extractTokenFromRequest(r))
			if err != nil {
				handlerLogger(r.Context(), logger, "Middleware", "OptionalAuth").
					WarnContext(r.Context(), "token rejected", "error", err, "error_kind", application.ErrorKind(err))
				responder.handleServiceError(r.Context(), w, err)
				return
			}
			if principal == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), *principal, identity)))
		})
	}
}

func withCaller(ctx context.Context, principal application.Principal, identity token.Identity) context.Context {
	ctx = ContextWithIdentity(ContextWithPrincipal(ctx, principal), identity)
	ctx = logging.WithAttrs(ctx, "principal_id", principal.UserID, "role", string(principal.Role))
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.Scope().SetUser(sentry.User{ID: principal.UserID, Username: principal.Name})
	}
	return ctx
}

// RequestLogger attaches a request scoped logger and logs each request's outcome.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", recorder.status, "duration", time.Since(start))
		})
	}
}

// Recover turns panics into 500 responses and reports them to Sentry.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hub := sentry.GetHubFromContext(r.Context())
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
			}
			ctx := sentry.SetHubOnContext(r.Context(), hub)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hub.RecoverWithContext(ctx, rec)
				responder.loggerFor(ctx).ErrorContext(ctx, "panic while serving request", "panic", fmt.Sprint(rec))
				responder.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
					ErrorCode: "INTERNAL",
					Message:   "internal server error",
				})
			}()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func extractTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
