package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/taskboard/internal/application"
)

type evaluationService interface {
	Create(ctx context.Context, principal application.Principal, taskID string, input application.EvaluationInput) (application.Evaluation, error)
	QueryRange(ctx context.Context, principal application.Principal, userID string, start, end time.Time) (application.EvaluationReport, error)
}

type EvaluationHandler struct {
	service   evaluationService
	responder responder
	logger    *slog.Logger
}

func NewEvaluationHandler(service evaluationService, logger *slog.Logger) *EvaluationHandler {
	base := defaultLogger(logger)
	return &EvaluationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *EvaluationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EvaluationHandler", operation, attrs...)
}

func (h *EvaluationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	taskID := r.PathValue("id")
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "task_id", taskID)

	var req evaluationRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode evaluation", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	evaluation, err := h.service.Create(r.Context(), principal, taskID, application.EvaluationInput{Grade: req.Grade})
	if err != nil {
		logger.WarnContext(r.Context(), "evaluation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("evaluation_id", evaluation.ID, "grade", evaluation.Grade).InfoContext(r.Context(), "task evaluated")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toEvaluationDTO(evaluation))
}

// Query returns evaluations between the start and end query dates. user_id defaults
// to the caller.
func (h *EvaluationHandler) Query(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	userID := trimmedQuery(r, "user_id")
	if userID == "" {
		userID = principal.UserID
	}
	logger := h.log(r.Context(), "Query", "principal_id", principal.UserID, "user_id", userID)

	vErr := &application.ValidationError{FieldErrors: map[string]string{}}
	start, startErr := parseDate("start", trimmedQuery(r, "start"))
	if startErr != nil {
		vErr.FieldErrors["start"] = startErr.FieldErrors["start"]
	}
	end, endErr := parseDate("end", trimmedQuery(r, "end"))
	if endErr != nil {
		vErr.FieldErrors["end"] = endErr.FieldErrors["end"]
	}
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	report, err := h.service.QueryRange(r.Context(), principal, userID, start, end)
	if err != nil {
		logger.WarnContext(r.Context(), "evaluation query failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := evaluationReportDTO{
		UserID:       report.UserID,
		Start:        report.Start.Format(application.DateLayout),
		End:          report.End.Format(application.DateLayout),
		AverageGrade: report.AverageGrade,
		Evaluations:  make([]evaluationDTO, 0, len(report.Evaluations)),
	}
	for _, evaluation := range report.Evaluations {
		out.Evaluations = append(out.Evaluations, toEvaluationDTO(evaluation))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

type evaluationRequest struct {
	Grade int `json:"grade"`
}

type evaluationDTO struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	EmployeeID  string `json:"employee_id"`
	Grade       int    `json:"grade"`
	EvaluatedAt string `json:"evaluated_at"`
}

type evaluationReportDTO struct {
	UserID       string          `json:"user_id"`
	Start        string          `json:"start"`
	End          string          `json:"end"`
	AverageGrade float64         `json:"average_grade"`
	Evaluations  []evaluationDTO `json:"evaluations"`
}

func toEvaluationDTO(evaluation application.Evaluation) evaluationDTO {
	return evaluationDTO{
		ID:          evaluation.ID,
		TaskID:      evaluation.TaskID,
		EmployeeID:  evaluation.EmployeeID,
		Grade:       evaluation.Grade,
		EvaluatedAt: formatTimestamp(evaluation.EvaluatedAt),
	}
}
