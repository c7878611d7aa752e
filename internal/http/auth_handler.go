package http

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/token"
)

type authService interface {
	Login(ctx context.Context, params application.LoginParams) (application.LoginResult, error)
	Logout(ctx context.Context, identity token.Identity) error
}

type AuthHandler struct {
	service   authService
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(service authService, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

// IssueToken accepts either a JSON body or an OAuth2 password form.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	req, err := readLoginRequest(r)
	if err != nil {
		h.log(r.Context(), "IssueToken", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode token request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "IssueToken", "username", req.Username)

	result, err := h.service.Login(r.Context(), application.LoginParams{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, application.ErrInvalidCredentials) {
			logger.WarnContext(r.Context(), "authentication rejected", "error_kind", application.ErrorKind(err))
			h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
				ErrorCode: "AUTH_INVALID_CREDENTIALS",
				Message:   "incorrect username or password",
			})
			return
		}
		logger.WarnContext(r.Context(), "authentication failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", result.User.ID).InfoContext(r.Context(), "token issued")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, tokenResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
		ExpiresAt:   result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout revokes the token the request was authenticated with.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		h.log(r.Context(), "Logout", "error_kind", "unauthenticated").WarnContext(r.Context(), "logout without a verified token")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, "UNAUTHENTICATED", errMissingToken)
		return
	}

	logger := h.log(r.Context(), "Logout", "user_id", identity.UserID)
	if err := h.service.Logout(r.Context(), identity); err != nil {
		logger.ErrorContext(r.Context(), "failed to revoke token", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "token revoked")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func readLoginRequest(r *http.Request) (loginRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return loginRequest{}, err
		}
		return loginRequest{
			Username: strings.TrimSpace(r.PostFormValue("username")),
			Password: r.PostFormValue("password"),
		}, nil
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		return loginRequest{}, err
	}
	req.Username = strings.TrimSpace(req.Username)
	return req, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
}
