package http

import (
	"context"
	"log/slog"
	"net/http"
)

type RouterConfig struct {
	Authenticator Authenticator
	Auth          *AuthHandler
	Users         *UserHandler
	Teams         *TeamHandler
	Tasks         *TaskHandler
	Comments      *CommentHandler
	Evaluations   *EvaluationHandler
	Meetings      *MeetingHandler
	Calendar      *CalendarHandler
	// Health reports whether the backing store is reachable. Nil means always healthy.
	Health     func(ctx context.Context) error
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	logger := defaultLogger(cfg.Logger)

	authed := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(cfg.Authenticator, logger)(h)
	}

	mux.HandleFunc("GET /healthz", healthHandler(cfg.Health, logger))

	if cfg.Auth != nil {
		mux.HandleFunc("POST /auth/token", cfg.Auth.IssueToken)
		mux.Handle("POST /auth/logout", authed(cfg.Auth.Logout))
	}

	if cfg.Users != nil {
		mux.Handle("POST /users", OptionalAuth(cfg.Authenticator, logger)(http.HandlerFunc(cfg.Users.Register)))
		mux.Handle("GET /users", authed(cfg.Users.List))
		mux.Handle("GET /users/me", authed(cfg.Users.Me))
		mux.Handle("PUT /users/me/password", authed(cfg.Users.ChangePassword))
		mux.Handle("PUT /users/me/name", authed(cfg.Users.ChangeName))
		mux.Handle("PUT /users/{id}/role", authed(cfg.Users.ChangeRole))
		mux.Handle("PUT /users/{id}/active", authed(cfg.Users.SetActive))
		mux.Handle("DELETE /users/{id}", authed(cfg.Users.Delete))
	}

	if cfg.Teams != nil {
		mux.Handle("POST /teams", authed(cfg.Teams.Create))
		mux.Handle("GET /teams", authed(cfg.Teams.List))
		mux.Handle("GET /teams/mine", authed(cfg.Teams.Mine))
		mux.Handle("GET /teams/{id}", authed(cfg.Teams.Get))
		mux.Handle("PUT /teams/{id}/members", authed(cfg.Teams.AddMembers))
		mux.Handle("DELETE /teams/{id}", authed(cfg.Teams.Delete))
	}

	if cfg.Tasks != nil {
		mux.Handle("POST /tasks", authed(cfg.Tasks.Create))
		mux.Handle("GET /tasks", authed(cfg.Tasks.List))
		mux.Handle("GET /tasks/mine", authed(cfg.Tasks.Mine))
		mux.Handle("GET /tasks/{id}", authed(cfg.Tasks.Get))
		mux.Handle("PATCH /tasks/{id}", authed(cfg.Tasks.Update))
		mux.Handle("DELETE /tasks/{id}", authed(cfg.Tasks.Delete))
		mux.Handle("POST /tasks/{id}/claim", authed(cfg.Tasks.Claim))
		mux.Handle("POST /tasks/{id}/complete", authed(cfg.Tasks.Complete))
	}

	if cfg.Comments != nil {
		mux.Handle("POST /tasks/{id}/comments", authed(cfg.Comments.Add))
		mux.Handle("PUT /comments/{id}", authed(cfg.Comments.Update))
		mux.Handle("DELETE /comments/{id}", authed(cfg.Comments.Delete))
	}

	if cfg.Evaluations != nil {
		mux.Handle("POST /tasks/{id}/evaluations", authed(cfg.Evaluations.Create))
		mux.Handle("GET /evaluations", authed(cfg.Evaluations.Query))
	}

	if cfg.Meetings != nil {
		mux.Handle("POST /meetings", authed(cfg.Meetings.Create))
		mux.Handle("GET /meetings/mine", authed(cfg.Meetings.Mine))
		mux.Handle("DELETE /meetings/{id}", authed(cfg.Meetings.Delete))
	}

	if cfg.Calendar != nil {
		mux.Handle("GET /calendar/today", authed(cfg.Calendar.Today))
		mux.Handle("GET /calendar/month", authed(cfg.Calendar.Month))
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

func healthHandler(check func(ctx context.Context) error, logger *slog.Logger) http.HandlerFunc {
	responder := newResponder(logger)
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "health check failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

type healthResponse struct {
	Status string `json:"status"`
}
