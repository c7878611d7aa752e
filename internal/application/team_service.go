package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// TeamRepository captures the persistence operations needed by the team service.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team Team) (Team, error)
	GetTeam(ctx context.Context, id string) (Team, error)
	ListTeams(ctx context.Context) ([]Team, error)
	DeleteTeam(ctx context.Context, id string) error
	ListMembers(ctx context.Context, teamID string) ([]User, error)
	ReplaceMembers(ctx context.Context, teamID string, userIDs []string, at time.Time) error
}

// MemberDirectory resolves and updates the users a team is made of.
type MemberDirectory interface {
	GetUser(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
}

// TeamService manages teams, their membership and the one-manager-per-team rule.
type TeamService struct {
	teams       TeamRepository
	users       MemberDirectory
	tx          Transactor
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewTeamService wires dependencies for the team service.
func NewTeamService(teams TeamRepository, users MemberDirectory, tx Transactor, idGenerator func() string, now func() time.Time) *TeamService {
	return NewTeamServiceWithLogger(teams, users, tx, idGenerator, now, nil)
}

// NewTeamServiceWithLogger wires dependencies for the team service with a specific logger.
func NewTeamServiceWithLogger(teams TeamRepository, users MemberDirectory, tx Transactor, idGenerator func() string, now func() time.Time, logger *slog.Logger) *TeamService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TeamService{
		teams:       teams,
		users:       users,
		tx:          defaultTransactor(tx),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *TeamService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TeamService", operation, attrs...)
}

func (s *TeamService) ready() error {
	if s == nil {
		return fmt.Errorf("TeamService is nil")
	}
	if s.teams == nil || s.users == nil {
		return fmt.Errorf("team repositories not configured")
	}
	return nil
}

// CreateTeam registers an empty team. Administrators only.
func (s *TeamService) CreateTeam(ctx context.Context, principal Principal, input TeamInput) (team Team, err error) {
	if err = s.ready(); err != nil {
		return
	}

	input.Name = strings.TrimSpace(input.Name)
	logger := s.loggerWith(ctx, "CreateTeam", "principal_id", principal.UserID, "name", input.Name)
	defer func() {
		logOutcome(ctx, logger, err, "team created", "team_id", team.ID)
	}()

	if err = requireRole(principal, RoleAdmin); err != nil {
		return
	}
	if vErr := validateInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	team, err = s.teams.CreateTeam(ctx, Team{
		ID:        s.idGenerator(),
		Name:      input.Name,
		CreatedAt: s.now().UTC(),
	})
	return
}

// ListTeams returns every team without members. Administrators only.
func (s *TeamService) ListTeams(ctx context.Context, principal Principal) ([]Team, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := requireRole(principal, RoleAdmin); err != nil {
		return nil, err
	}
	return s.teams.ListTeams(ctx)
}

// GetTeam returns a team with its members. Administrators only.
func (s *TeamService) GetTeam(ctx context.Context, principal Principal, teamID string) (Team, error) {
	if err := s.ready(); err != nil {
		return Team{}, err
	}
	if err := requireRole(principal, RoleAdmin); err != nil {
		return Team{}, err
	}
	return s.withMembers(ctx, teamID)
}

// MyTeam returns the team of the caller with its members.
func (s *TeamService) MyTeam(ctx context.Context, principal Principal) (Team, error) {
	if err := s.ready(); err != nil {
		return Team{}, err
	}
	if err := requireAuthenticated(principal); err != nil {
		return Team{}, err
	}
	user, err := s.users.GetUser(ctx, principal.UserID)
	if err != nil {
		return Team{}, fromStore(err, ErrUserNotFound)
	}
	if user.TeamID == nil {
		return Team{}, ErrTeamNotFound
	}
	return s.withMembers(ctx, *user.TeamID)
}

func (s *TeamService) withMembers(ctx context.Context, teamID string) (Team, error) {
	team, err := s.teams.GetTeam(ctx, teamID)
	if err != nil {
		return Team{}, fromStore(err, ErrTeamNotFound)
	}
	members, err := s.teams.ListMembers(ctx, teamID)
	if err != nil {
		return Team{}, err
	}
	team.Members = members
	return team, nil
}

// AddMembers replaces the membership of a team with userIDs. Every candidate must exist,
// must not belong to another team, and at most one of them may be a manager. Nothing is
// written unless all candidates pass. Administrators only.
func (s *TeamService) AddMembers(ctx context.Context, principal Principal, teamID string, userIDs []string) (team Team, err error) {
	if err = s.ready(); err != nil {
		return
	}

	ids := uniqueIDs(userIDs)
	logger := s.loggerWith(ctx, "AddMembers", "principal_id", principal.UserID, "team_id", teamID, "member_count", len(ids))
	defer func() {
		logOutcome(ctx, logger, err, "team membership replaced")
	}()

	if err = requireRole(principal, RoleAdmin); err != nil {
		return
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, getErr := s.teams.GetTeam(ctx, teamID); getErr != nil {
			return fromStore(getErr, ErrTeamNotFound)
		}

		managerSeen := false
		for _, id := range ids {
			user, getErr := s.users.GetUser(ctx, id)
			if getErr != nil {
				return fromStore(getErr, ErrUserNotFound)
			}
			if user.TeamID != nil && *user.TeamID != teamID {
				return ErrUserAlreadyOnAnotherTeam
			}
			if user.Role == RoleManager {
				if managerSeen {
					return ErrDuplicateManager
				}
				managerSeen = true
			}
		}

		if replaceErr := s.teams.ReplaceMembers(ctx, teamID, ids, s.now().UTC()); replaceErr != nil {
			return fromStore(replaceErr, ErrUserNotFound)
		}

		loaded, loadErr := s.withMembers(ctx, teamID)
		if loadErr != nil {
			return loadErr
		}
		team = loaded
		return nil
	})
	return
}

// HasManager reports whether any member of the team is a manager.
func (s *TeamService) HasManager(ctx context.Context, teamID string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	members, err := s.teams.ListMembers(ctx, teamID)
	if err != nil {
		return false, err
	}
	_, found := managerOf(members, "")
	return found, nil
}

// managerOf returns the first manager among members other than exceptID.
func managerOf(members []User, exceptID string) (User, bool) {
	for _, member := range members {
		if member.Role == RoleManager && member.ID != exceptID {
			return member, true
		}
	}
	return User{}, false
}

// ChangeUserRole assigns a new role. Promoting a team member to manager fails when the
// team already has a different manager. Administrators only.
func (s *TeamService) ChangeUserRole(ctx context.Context, principal Principal, userID, role string) (user User, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ChangeUserRole", "principal_id", principal.UserID, "user_id", userID, "role", role)
	defer func() {
		logOutcome(ctx, logger, err, "user role changed")
	}()

	if err = requireRole(principal, RoleAdmin); err != nil {
		return
	}
	newRole, ok := ParseRole(role)
	if !ok {
		err = fieldError("role", "role must be one of admin, manager, staff")
		return
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, getErr := s.users.GetUser(ctx, userID)
		if getErr != nil {
			return fromStore(getErr, ErrUserNotFound)
		}

		if newRole == RoleManager && current.TeamID != nil {
			members, listErr := s.teams.ListMembers(ctx, *current.TeamID)
			if listErr != nil {
				return listErr
			}
			if _, taken := managerOf(members, current.ID); taken {
				return ErrDuplicateManagerOnAssign
			}
		}

		current.Role = newRole
		current.UpdatedAt = s.now().UTC()
		updated, updateErr := s.users.UpdateUser(ctx, current)
		if updateErr != nil {
			return fromUserWrite(updateErr)
		}
		user = updated
		return nil
	})
	return
}

// DeleteTeam removes a team. Former members become teamless. Administrators only.
func (s *TeamService) DeleteTeam(ctx context.Context, principal Principal, teamID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteTeam", "principal_id", principal.UserID, "team_id", teamID)
	defer func() {
		logOutcome(ctx, logger, err, "team deleted")
	}()

	if err = requireRole(principal, RoleAdmin); err != nil {
		return
	}
	err = fromStore(s.teams.DeleteTeam(ctx, teamID), ErrTeamNotFound)
	return
}
