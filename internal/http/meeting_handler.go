package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/taskboard/internal/application"
)

type meetingService interface {
	Create(ctx context.Context, principal application.Principal, input application.MeetingInput) (application.Meeting, error)
	Delete(ctx context.Context, principal application.Principal, meetingID string) error
	ListUpcomingForUser(ctx context.Context, principal application.Principal, userID string) ([]application.Meeting, error)
}

type MeetingHandler struct {
	service   meetingService
	responder responder
	logger    *slog.Logger
}

func NewMeetingHandler(service meetingService, logger *slog.Logger) *MeetingHandler {
	base := defaultLogger(logger)
	return &MeetingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *MeetingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "MeetingHandler", operation, attrs...)
}

func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	var req meetingRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode meeting", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	var at time.Time
	if raw := strings.TrimSpace(req.Date); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, invalidField("date", "date must be an RFC 3339 timestamp"))
			return
		}
		at = parsed
	}

	meeting, err := h.service.Create(r.Context(), principal, application.MeetingInput{
		Title:          req.Title,
		Description:    req.Description,
		At:             at,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "meeting scheduling failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("meeting_id", meeting.ID).InfoContext(r.Context(), "meeting scheduled")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toMeetingDTO(meeting))
}

// Mine lists upcoming meetings of the caller, or of user_id for managers and admins.
func (h *MeetingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	userID := trimmedQuery(r, "user_id")
	if userID == "" {
		userID = principal.UserID
	}

	meetings, err := h.service.ListUpcomingForUser(r.Context(), principal, userID)
	if err != nil {
		h.log(r.Context(), "Mine", "principal_id", principal.UserID, "user_id", userID).
			WarnContext(r.Context(), "meeting list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toMeetingDTOs(meetings))
}

func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	meetingID := r.PathValue("id")
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "meeting_id", meetingID)
	if err := h.service.Delete(r.Context(), principal, meetingID); err != nil {
		logger.WarnContext(r.Context(), "meeting delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "meeting cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type meetingRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Date           string   `json:"date"`
	ParticipantIDs []string `json:"participant_ids"`
}

type meetingDTO struct {
	ID             string   `json:"id"`
	HostID         string   `json:"host_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Date           string   `json:"date"`
	ParticipantIDs []string `json:"participant_ids"`
	CreatedAt      string   `json:"created_at"`
}

func toMeetingDTO(meeting application.Meeting) meetingDTO {
	participants := meeting.ParticipantIDs
	if participants == nil {
		participants = []string{}
	}
	return meetingDTO{
		ID:             meeting.ID,
		HostID:         meeting.HostID,
		Title:          meeting.Title,
		Description:    meeting.Description,
		Date:           formatTimestamp(meeting.At),
		ParticipantIDs: participants,
		CreatedAt:      formatTimestamp(meeting.CreatedAt),
	}
}

func toMeetingDTOs(meetings []application.Meeting) []meetingDTO {
	out := make([]meetingDTO, 0, len(meetings))
	for _, meeting := range meetings {
		out = append(out, toMeetingDTO(meeting))
	}
	return out
}
