package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"github.com/example/taskboard/internal/application"
)

const maxBodyBytes = 1 << 20

var (
	errBadRequestBody = errors.New("request body is not valid JSON")
	errMissingToken   = errors.New("authentication required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
	}
	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
}

// handleServiceError maps the application error kinds onto HTTP statuses. Anything
// unrecognised is a 500 and is reported to Sentry.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "validation failed",
			Errors:    vErr.FieldErrors,
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthenticated):
		r.writeError(ctx, w, http.StatusUnauthorized, "UNAUTHENTICATED", err)
	case errors.Is(err, application.ErrForbidden):
		r.writeError(ctx, w, http.StatusForbidden, "FORBIDDEN", err)
	case errors.Is(err, application.ErrNotFound):
		r.writeError(ctx, w, http.StatusNotFound, "NOT_FOUND", err)
	case errors.Is(err, application.ErrInvalidTransition):
		r.writeError(ctx, w, http.StatusBadRequest, "INVALID_TRANSITION", err)
	case errors.Is(err, application.ErrConflict):
		r.writeError(ctx, w, http.StatusConflict, "CONFLICT", err)
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		captureError(ctx, err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode: "INTERNAL",
			Message:   "internal server error",
		})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

// captureError reports err to Sentry with the request principal attached. It is a no-op
// when Sentry was never initialised.
func captureError(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_kind", application.ErrorKind(err))
		if principal, ok := PrincipalFromContext(ctx); ok {
			scope.SetUser(sentry.User{ID: principal.UserID, Username: principal.Name})
		}
		hub.CaptureException(err)
	})
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequestBody, err)
	}
	return nil
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
