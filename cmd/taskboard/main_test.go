package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/config"
)

var fastArgon2 = application.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		SQLitePath:      filepath.Join(t.TempDir(), "taskboard.db"),
		TokenSecret:     "integration-secret",
		TokenTTL:        20 * time.Minute,
		Location:        time.UTC,
		ShutdownTimeout: time.Second,
		Admin:           config.AdminConfig{Email: "admin@example.com", Name: "admin", Password: "adminpass1"},
	}
}

func startServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(context.Background(), cfg, logger, appOptions{argon2: fastArgon2})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	server := httptest.NewServer(a.handler)
	t.Cleanup(func() {
		server.Close()
		if err := a.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return server
}

func call(t *testing.T, server *httptest.Server, method, path, bearer string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("%s %s: missing request id header", method, path)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type tokenBody struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type idBody struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Role   string `json:"role"`
}

func login(t *testing.T, server *httptest.Server, username, password string) string {
	t.Helper()
	var tok tokenBody
	status := call(t, server, http.MethodPost, "/auth/token", "", map[string]string{"username": username, "password": password}, &tok)
	if status != http.StatusOK || tok.AccessToken == "" || tok.TokenType != "bearer" {
		t.Fatalf("login %s: status %d, body %+v", username, status, tok)
	}
	return tok.AccessToken
}

func TestApp_EndToEnd(t *testing.T) {
	server := startServer(t, testConfig(t))

	var health map[string]string
	if status := call(t, server, http.MethodGet, "/healthz", "", nil, &health); status != http.StatusOK || health["status"] != "ok" {
		t.Fatalf("healthz: status %d, body %v", status, health)
	}

	if status := call(t, server, http.MethodGet, "/users/me", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	adminToken := login(t, server, "admin", "adminpass1")

	var manager, staff idBody
	if status := call(t, server, http.MethodPost, "/users", "", map[string]string{
		"email": "mgr@example.com", "name": "mgr", "password": "password1",
	}, &manager); status != http.StatusCreated {
		t.Fatalf("register manager: status %d", status)
	}
	if status := call(t, server, http.MethodPost, "/users", "", map[string]string{
		"email": "dev@example.com", "name": "dev", "password": "password1",
	}, &staff); status != http.StatusCreated || staff.Role != "staff" {
		t.Fatalf("register staff: status %d, body %+v", status, staff)
	}

	var promoted idBody
	if status := call(t, server, http.MethodPut, "/users/"+manager.ID+"/role", adminToken, map[string]string{"role": "manager"}, &promoted); status != http.StatusOK || promoted.Role != "manager" {
		t.Fatalf("promote: status %d, body %+v", status, promoted)
	}

	managerToken := login(t, server, "mgr", "password1")
	staffToken := login(t, server, "dev@example.com", "password1")

	var task idBody
	if status := call(t, server, http.MethodPost, "/tasks", staffToken, map[string]string{
		"description": "ship it", "deadline": "2030-01-02",
	}, nil); status != http.StatusForbidden {
		t.Fatalf("expected staff task creation to be forbidden, got %d", status)
	}
	if status := call(t, server, http.MethodPost, "/tasks", managerToken, map[string]string{
		"description": "ship it", "deadline": "2030-01-02",
	}, &task); status != http.StatusCreated || task.Status != "opened" {
		t.Fatalf("create task: status %d, body %+v", status, task)
	}

	var claimed idBody
	if status := call(t, server, http.MethodPost, "/tasks/"+task.ID+"/claim", staffToken, nil, &claimed); status != http.StatusOK || claimed.Status != "in_progress" {
		t.Fatalf("claim: status %d, body %+v", status, claimed)
	}
	if status := call(t, server, http.MethodPost, "/tasks/"+task.ID+"/claim", managerToken, nil, nil); status != http.StatusBadRequest {
		t.Fatalf("expected second claim to be rejected with 400, got %d", status)
	}

	var done idBody
	if status := call(t, server, http.MethodPost, "/tasks/"+task.ID+"/complete", staffToken, nil, &done); status != http.StatusOK || done.Status != "done" {
		t.Fatalf("complete: status %d, body %+v", status, done)
	}

	if status := call(t, server, http.MethodPost, "/tasks/"+task.ID+"/evaluations", managerToken, map[string]int{"grade": 5}, nil); status != http.StatusCreated {
		t.Fatalf("evaluate: status %d", status)
	}

	if status := call(t, server, http.MethodPost, "/auth/logout", staffToken, nil, nil); status != http.StatusNoContent {
		t.Fatalf("logout: status %d", status)
	}
	if status := call(t, server, http.MethodGet, "/users/me", staffToken, nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", status)
	}
	if status := call(t, server, http.MethodPost, "/users", staffToken, map[string]string{
		"email": "late@example.com", "name": "late", "password": "password1",
	}, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected registration with a revoked token to be rejected, got %d", status)
	}
}

func TestNewApp_AdminBootstrapIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for i := 0; i < 2; i++ {
		a, err := newApp(context.Background(), cfg, logger, appOptions{argon2: fastArgon2})
		if err != nil {
			t.Fatalf("newApp run %d: %v", i, err)
		}
		if err := a.Close(); err != nil {
			t.Fatalf("Close run %d: %v", i, err)
		}
	}
}

func TestNewApp_RedisUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisAddr = "127.0.0.1:1"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := newApp(ctx, cfg, logger, appOptions{argon2: fastArgon2}); err == nil {
		t.Fatal("expected an unreachable redis to fail startup")
	}
}
