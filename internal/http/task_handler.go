package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/workflow"
)

type taskService interface {
	Create(ctx context.Context, principal application.Principal, input application.TaskInput) (application.Task, error)
	Claim(ctx context.Context, principal application.Principal, taskID string) (application.Task, error)
	Complete(ctx context.Context, principal application.Principal, taskID string) (application.Task, error)
	ManagerUpdate(ctx context.Context, principal application.Principal, taskID string, patch application.TaskPatch) (application.Task, error)
	Delete(ctx context.Context, principal application.Principal, taskID string) error
	Get(ctx context.Context, principal application.Principal, taskID string) (application.Task, error)
	ListAll(ctx context.Context, principal application.Principal) ([]application.Task, error)
	ListMine(ctx context.Context, principal application.Principal) ([]application.Task, error)
}

type TaskHandler struct {
	service   taskService
	responder responder
	logger    *slog.Logger
}

func NewTaskHandler(service taskService, logger *slog.Logger) *TaskHandler {
	base := defaultLogger(logger)
	return &TaskHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *TaskHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "TaskHandler", operation, attrs...)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode task request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	deadline, vErr := parseDate("deadline", req.Deadline)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	task, err := h.service.Create(r.Context(), principal, application.TaskInput{
		Description: req.Description,
		Deadline:    deadline,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "task creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("task_id", task.ID).InfoContext(r.Context(), "task created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toTaskDTO(task))
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "List", h.service.ListAll)
}

func (h *TaskHandler) Mine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "Mine", h.service.ListMine)
}

func (h *TaskHandler) list(w http.ResponseWriter, r *http.Request, operation string, fetch func(context.Context, application.Principal) ([]application.Task, error)) {
	principal, _ := PrincipalFromContext(r.Context())
	tasks, err := fetch(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), operation, "principal_id", principal.UserID).
			WarnContext(r.Context(), "task list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTaskDTOs(tasks))
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	taskID := r.PathValue("id")
	task, err := h.service.Get(r.Context(), principal, taskID)
	if err != nil {
		h.log(r.Context(), "Get", "principal_id", principal.UserID, "task_id", taskID).
			WarnContext(r.Context(), "task lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTaskDTO(task))
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	taskID := r.PathValue("id")
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "task_id", taskID)

	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode task patch", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	patch, vErr := req.toPatch()
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	task, err := h.service.ManagerUpdate(r.Context(), principal, taskID, patch)
	if err != nil {
		logger.WarnContext(r.Context(), "task update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("status", task.Status).InfoContext(r.Context(), "task updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTaskDTO(task))
}

func (h *TaskHandler) Claim(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Claim", "task claimed", h.service.Claim)
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Complete", "task completed", h.service.Complete)
}

func (h *TaskHandler) act(w http.ResponseWriter, r *http.Request, operation, success string, action func(context.Context, application.Principal, string) (application.Task, error)) {
	principal, _ := PrincipalFromContext(r.Context())
	taskID := r.PathValue("id")
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "task_id", taskID)

	task, err := action(r.Context(), principal, taskID)
	if err != nil {
		logger.WarnContext(r.Context(), strings.ToLower(operation)+" failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), success)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTaskDTO(task))
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	taskID := r.PathValue("id")
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "task_id", taskID)
	if err := h.service.Delete(r.Context(), principal, taskID); err != nil {
		logger.WarnContext(r.Context(), "task delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "task deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type createTaskRequest struct {
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
}

type updateTaskRequest struct {
	Description application.Optional[string]  `json:"description"`
	Deadline    application.Optional[string]  `json:"deadline"`
	Status      application.Optional[string]  `json:"status"`
	AssigneeID  application.Optional[*string] `json:"assigned_to"`
}

func (r updateTaskRequest) toPatch() (application.TaskPatch, *application.ValidationError) {
	patch := application.TaskPatch{
		Description: r.Description,
		AssigneeID:  r.AssigneeID,
	}
	if r.Deadline.Set {
		deadline, vErr := parseDate("deadline", r.Deadline.Value)
		if vErr != nil {
			return application.TaskPatch{}, vErr
		}
		patch.Deadline = application.Some(deadline)
	}
	if r.Status.Set {
		status, err := workflow.ParseStatus(r.Status.Value)
		if err != nil {
			status = workflow.Status(r.Status.Value)
		}
		patch.Status = application.Some(status)
	}
	return patch, nil
}

// parseDate reads a calendar date such as 2024-05-01. Full RFC 3339 timestamps are
// accepted and reduced to their date.
func parseDate(field, value string) (time.Time, *application.ValidationError) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, invalidField(field, field+" is required")
	}
	if t, err := time.Parse(application.DateLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, invalidField(field, field+" must be a date in YYYY-MM-DD form")
}

func invalidField(field, message string) *application.ValidationError {
	return &application.ValidationError{FieldErrors: map[string]string{field: message}}
}

type taskDTO struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Deadline    string       `json:"deadline"`
	Status      string       `json:"status"`
	AssigneeID  *string      `json:"assigned_to"`
	CompletedAt *string      `json:"completed_at"`
	CreatedAt   string       `json:"created_at"`
	UpdatedAt   string       `json:"updated_at"`
	Comments    []commentDTO `json:"comments,omitempty"`
}

func toTaskDTO(task application.Task) taskDTO {
	dto := taskDTO{
		ID:          task.ID,
		Description: task.Description,
		Deadline:    task.Deadline.UTC().Format(application.DateLayout),
		Status:      string(task.Status),
		AssigneeID:  task.AssigneeID,
		CompletedAt: formatOptionalTimestamp(task.CompletedAt),
		CreatedAt:   formatTimestamp(task.CreatedAt),
		UpdatedAt:   formatTimestamp(task.UpdatedAt),
	}
	for _, comment := range task.Comments {
		dto.Comments = append(dto.Comments, toCommentDTO(comment))
	}
	return dto
}

func toTaskDTOs(tasks []application.Task) []taskDTO {
	out := make([]taskDTO, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, toTaskDTO(task))
	}
	return out
}
