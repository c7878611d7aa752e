package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/taskboard/internal/application"
)

type commentService interface {
	Add(ctx context.Context, principal application.Principal, taskID string, input application.CommentInput) (application.Comment, error)
	Update(ctx context.Context, principal application.Principal, commentID string, input application.CommentInput) (application.Comment, error)
	Delete(ctx context.Context, principal application.Principal, commentID string) error
}

type CommentHandler struct {
	service   commentService
	responder responder
	logger    *slog.Logger
}

func NewCommentHandler(service commentService, logger *slog.Logger) *CommentHandler {
	base := defaultLogger(logger)
	return &CommentHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *CommentHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CommentHandler", operation, attrs...)
}

func (h *CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	taskID := r.PathValue("id")
	logger := h.log(r.Context(), "Add", "principal_id", principal.UserID, "task_id", taskID)

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode comment", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	comment, err := h.service.Add(r.Context(), principal, taskID, application.CommentInput{Text: req.Text})
	if err != nil {
		logger.WarnContext(r.Context(), "comment failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("comment_id", comment.ID).InfoContext(r.Context(), "comment added")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toCommentDTO(comment))
}

func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	commentID := r.PathValue("id")
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "comment_id", commentID)

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode comment", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	comment, err := h.service.Update(r.Context(), principal, commentID, application.CommentInput{Text: req.Text})
	if err != nil {
		logger.WarnContext(r.Context(), "comment update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "comment updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toCommentDTO(comment))
}

func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	commentID := r.PathValue("id")
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "comment_id", commentID)
	if err := h.service.Delete(r.Context(), principal, commentID); err != nil {
		logger.WarnContext(r.Context(), "comment delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "comment deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type commentRequest struct {
	Text string `json:"text"`
}

type commentDTO struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	AuthorID  string `json:"author_id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

func toCommentDTO(comment application.Comment) commentDTO {
	return commentDTO{
		ID:        comment.ID,
		TaskID:    comment.TaskID,
		AuthorID:  comment.AuthorID,
		Text:      comment.Text,
		CreatedAt: formatTimestamp(comment.CreatedAt),
	}
}
