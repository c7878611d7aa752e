package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/token"
)

type authenticatorStub struct {
	principal application.Principal
	identity  token.Identity
	err       error
	seen      []string
}

func (a *authenticatorStub) Authenticate(ctx context.Context, raw string) (application.Principal, token.Identity, error) {
	a.seen = append(a.seen, raw)
	if a.err != nil {
		return application.Principal{}, token.Identity{}, a.err
	}
	return a.principal, a.identity, nil
}

func (a *authenticatorStub) AuthenticateOptional(ctx context.Context, raw string) (*application.Principal, token.Identity, error) {
	if raw == "" {
		return nil, token.Identity{}, nil
	}
	principal, identity, err := a.Authenticate(ctx, raw)
	if err != nil {
		return nil, token.Identity{}, err
	}
	return &principal, identity, nil
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	valid := &authenticatorStub{
		principal: application.Principal{UserID: "u1", Name: "anna", Role: application.RoleStaff},
		identity:  token.Identity{UserID: "u1", TokenID: "jti-1", ExpiresAt: time.Now().Add(time.Minute)},
	}

	tests := []struct {
		name       string
		header     string
		auth       *authenticatorStub
		wantStatus int
		wantCalled bool
	}{
		{name: "missing header", auth: valid, wantStatus: http.StatusUnauthorized},
		{name: "non bearer scheme", header: "Basic abc", auth: valid, wantStatus: http.StatusUnauthorized},
		{name: "rejected token", header: "Bearer bad", auth: &authenticatorStub{err: application.ErrUnauthenticated}, wantStatus: http.StatusUnauthorized},
		{name: "disabled account", header: "Bearer tok", auth: &authenticatorStub{err: application.ErrAccountDisabled}, wantStatus: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer tok", auth: valid, wantStatus: http.StatusOK, wantCalled: true},
		{name: "scheme is case insensitive", header: "bearer tok", auth: valid, wantStatus: http.StatusOK, wantCalled: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				principal, ok := PrincipalFromContext(r.Context())
				if !ok || principal.UserID != "u1" {
					t.Fatalf("expected principal u1 in context, got %+v", principal)
				}
				identity, ok := IdentityFromContext(r.Context())
				if !ok || identity.TokenID != "jti-1" {
					t.Fatalf("expected identity in context, got %+v", identity)
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			RequireAuth(tc.auth, nil)(next).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if called != tc.wantCalled {
				t.Fatalf("expected next called=%v, got %v", tc.wantCalled, called)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	t.Parallel()

	valid := &authenticatorStub{principal: application.Principal{UserID: "u1", Role: application.RoleStaff}}
	expired := &authenticatorStub{err: fmt.Errorf("%w: %w", application.ErrUnauthenticated, token.ErrTokenExpired)}

	tests := []struct {
		name       string
		auth       *authenticatorStub
		header     string
		wantStatus int
		wantCalled bool
		wantAuthed bool
	}{
		{name: "anonymous", auth: valid, wantStatus: http.StatusCreated, wantCalled: true},
		{name: "valid token", auth: valid, header: "Bearer tok", wantStatus: http.StatusCreated, wantCalled: true, wantAuthed: true},
		{name: "expired token", auth: expired, header: "Bearer expired.token.here", wantStatus: http.StatusUnauthorized},
		{name: "disabled account", auth: &authenticatorStub{err: application.ErrAccountDisabled}, header: "Bearer tok", wantStatus: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var called, authed bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				_, authed = PrincipalFromContext(r.Context())
				w.WriteHeader(http.StatusCreated)
			})
			req := httptest.NewRequest(http.MethodPost, "/users", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			OptionalAuth(tc.auth, nil)(next).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if called != tc.wantCalled || authed != tc.wantAuthed {
				t.Fatalf("expected called=%v authenticated=%v, got %v %v", tc.wantCalled, tc.wantAuthed, called, authed)
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("generates a request id", func(t *testing.T) {
		var hasLogger bool
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hasLogger = LoggerFromContext(r.Context()) != nil
			w.WriteHeader(http.StatusTeapot)
		})
		rec := httptest.NewRecorder()
		RequestLogger(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if !hasLogger {
			t.Fatal("expected request scoped logger")
		}
		if rec.Header().Get(RequestIDHeader) == "" {
			t.Fatal("expected request id header")
		}
		if rec.Code != http.StatusTeapot {
			t.Fatalf("expected status to pass through, got %d", rec.Code)
		}
	})

	t.Run("keeps a caller supplied request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		RequestLogger(nil)(http.NotFoundHandler()).ServeHTTP(rec, req)
		if got := rec.Header().Get(RequestIDHeader); got != "req-42" {
			t.Fatalf("expected req-42, got %q", got)
		}
	})
}

func TestRecover(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("boom"))
	})
	rec := httptest.NewRecorder()
	Recover(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ErrorCode != "INTERNAL" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHandleServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		status   int
		code     string
		hasField string
	}{
		{name: "unauthenticated", err: application.ErrInvalidCredentials, status: http.StatusUnauthorized, code: "UNAUTHENTICATED"},
		{name: "forbidden", err: application.ErrNotAssignee, status: http.StatusForbidden, code: "FORBIDDEN"},
		{name: "not found", err: application.ErrTaskNotFound, status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "invalid transition", err: application.ErrTaskNotOpened, status: http.StatusBadRequest, code: "INVALID_TRANSITION"},
		{name: "conflict", err: &application.SchedulingConflictError{MeetingID: "m1", At: time.Now()}, status: http.StatusConflict, code: "CONFLICT"},
		{name: "validation", err: &application.ValidationError{FieldErrors: map[string]string{"end": "end date must not be before start date"}}, status: http.StatusBadRequest, code: "VALIDATION_FAILED", hasField: "end"},
		{name: "unexpected", err: errors.New("disk on fire"), status: http.StatusInternalServerError, code: "INTERNAL"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newResponder(nil).handleServiceError(context.Background(), rec, tc.err)

			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.ErrorCode != tc.code {
				t.Fatalf("expected code %s, got %+v", tc.code, body)
			}
			if tc.hasField != "" {
				if _, ok := body.Errors[tc.hasField]; !ok {
					t.Fatalf("expected field error %q, got %+v", tc.hasField, body.Errors)
				}
			}
			if tc.status == http.StatusInternalServerError && body.Message != "internal server error" {
				t.Fatalf("expected internal details to be hidden, got %q", body.Message)
			}
		})
	}
}
