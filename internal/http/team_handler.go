package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/taskboard/internal/application"
)

type teamService interface {
	CreateTeam(ctx context.Context, principal application.Principal, input application.TeamInput) (application.Team, error)
	ListTeams(ctx context.Context, principal application.Principal) ([]application.Team, error)
	GetTeam(ctx context.Context, principal application.Principal, teamID string) (application.Team, error)
	MyTeam(ctx context.Context, principal application.Principal) (application.Team, error)
	AddMembers(ctx context.Context, principal application.Principal, teamID string, userIDs []string) (application.Team, error)
	DeleteTeam(ctx context.Context, principal application.Principal, teamID string) error
}

type TeamHandler struct {
	service   teamService
	responder responder
	logger    *slog.Logger
}

func NewTeamHandler(service teamService, logger *slog.Logger) *TeamHandler {
	base := defaultLogger(logger)
	return &TeamHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *TeamHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "TeamHandler", operation, attrs...)
}

func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	var req teamRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode team request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	team, err := h.service.CreateTeam(r.Context(), principal, application.TeamInput{Name: req.Name})
	if err != nil {
		logger.WarnContext(r.Context(), "team creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("team_id", team.ID).InfoContext(r.Context(), "team created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toTeamDTO(team))
}

func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	teams, err := h.service.ListTeams(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.UserID).
			WarnContext(r.Context(), "team list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]teamDTO, 0, len(teams))
	for _, team := range teams {
		out = append(out, toTeamDTO(team))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	teamID := r.PathValue("id")
	team, err := h.service.GetTeam(r.Context(), principal, teamID)
	if err != nil {
		h.log(r.Context(), "Get", "principal_id", principal.UserID, "team_id", teamID).
			WarnContext(r.Context(), "team lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTeamDTO(team))
}

func (h *TeamHandler) Mine(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	team, err := h.service.MyTeam(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Mine", "principal_id", principal.UserID).
			WarnContext(r.Context(), "own team lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTeamDTO(team))
}

func (h *TeamHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	teamID := r.PathValue("id")
	logger := h.log(r.Context(), "AddMembers", "principal_id", principal.UserID, "team_id", teamID)

	var req membersRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode members request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "BAD_REQUEST", errBadRequestBody)
		return
	}

	team, err := h.service.AddMembers(r.Context(), principal, teamID, req.UserIDs)
	if err != nil {
		logger.WarnContext(r.Context(), "member assignment failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("member_count", len(team.Members)).InfoContext(r.Context(), "members assigned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTeamDTO(team))
}

func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	teamID := r.PathValue("id")
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "team_id", teamID)
	if err := h.service.DeleteTeam(r.Context(), principal, teamID); err != nil {
		logger.WarnContext(r.Context(), "team delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "team deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type teamRequest struct {
	Name string `json:"name"`
}

type membersRequest struct {
	UserIDs []string `json:"user_ids"`
}

type teamDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []userDTO `json:"members,omitempty"`
	CreatedAt string    `json:"created_at"`
}

func toTeamDTO(team application.Team) teamDTO {
	dto := teamDTO{
		ID:        team.ID,
		Name:      team.Name,
		CreatedAt: formatTimestamp(team.CreatedAt),
	}
	if len(team.Members) > 0 {
		dto.Members = toUserDTOs(team.Members)
	}
	return dto
}
