package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/taskboard/internal/application"
)

type calendarService interface {
	Daily(ctx context.Context, principal application.Principal) (application.CalendarView, error)
	Monthly(ctx context.Context, principal application.Principal) (application.CalendarView, error)
}

type CalendarHandler struct {
	service   calendarService
	responder responder
	logger    *slog.Logger
}

func NewCalendarHandler(service calendarService, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	return &CalendarHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *CalendarHandler) Today(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "Today", h.service.Daily)
}

func (h *CalendarHandler) Month(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "Month", h.service.Monthly)
}

func (h *CalendarHandler) view(w http.ResponseWriter, r *http.Request, operation string, fetch func(context.Context, application.Principal) (application.CalendarView, error)) {
	principal, _ := PrincipalFromContext(r.Context())
	view, err := fetch(r.Context(), principal)
	if err != nil {
		handlerLogger(r.Context(), h.logger, "CalendarHandler", operation, "principal_id", principal.UserID).
			WarnContext(r.Context(), "calendar view failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, calendarDTO{
		From:     view.From.Format(application.DateLayout),
		To:       view.To.Format(application.DateLayout),
		Tasks:    toTaskDTOs(view.Tasks),
		Meetings: toMeetingDTOs(view.Meetings),
	})
}

type calendarDTO struct {
	From     string       `json:"from"`
	To       string       `json:"to"`
	Tasks    []taskDTO    `json:"tasks"`
	Meetings []meetingDTO `json:"meetings"`
}
