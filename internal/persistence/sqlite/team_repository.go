package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/persistence"
)

// TeamRepository stores teams and the team_id column of their members.
type TeamRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	users  *UserRepository
}

// NewTeamRepository creates a new SQLite team repository.
func NewTeamRepository(pool *ConnectionPool) *TeamRepository {
	return &TeamRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		users:  NewUserRepository(pool),
	}
}

// CreateTeam inserts a team.
func (r *TeamRepository) CreateTeam(ctx context.Context, team application.Team) (application.Team, error) {
	if team.ID == "" {
		return application.Team{}, persistence.ErrConstraintViolation
	}
	_, err := r.helper.Exec(ctx,
		`INSERT INTO teams (id, name, created_at) VALUES (?, ?, ?)`,
		team.ID, team.Name, formatTime(team.CreatedAt),
	)
	if err != nil {
		return application.Team{}, r.mapper.MapError(err)
	}
	return r.GetTeam(ctx, team.ID)
}

// GetTeam retrieves a team without its members.
func (r *TeamRepository) GetTeam(ctx context.Context, id string) (application.Team, error) {
	var (
		team      application.Team
		createdAt string
	)
	err := r.helper.QueryRow(ctx, `SELECT id, name, created_at FROM teams WHERE id = ?`, id).
		Scan(&team.ID, &team.Name, &createdAt)
	if err != nil {
		return application.Team{}, r.mapper.MapError(err)
	}
	if team.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return application.Team{}, err
	}
	return team, nil
}

// ListTeams returns all teams ordered by name.
func (r *TeamRepository) ListTeams(ctx context.Context) ([]application.Team, error) {
	rows, err := r.helper.Query(ctx, `SELECT id, name, created_at FROM teams ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var teams []application.Team
	for rows.Next() {
		var (
			team      application.Team
			createdAt string
		)
		if err := rows.Scan(&team.ID, &team.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		if team.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

// DeleteTeam removes a team. Members keep their accounts with team_id cleared.
func (r *TeamRepository) DeleteTeam(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return expectAffected(result)
}

// ListMembers returns the users on a team.
func (r *TeamRepository) ListMembers(ctx context.Context, teamID string) ([]application.User, error) {
	return r.users.ListTeamMembers(ctx, teamID)
}

// ReplaceMembers makes userIDs the exact membership of the team. Callers run it inside a
// transaction so the clear and the assignment commit together.
func (r *TeamRepository) ReplaceMembers(ctx context.Context, teamID string, userIDs []string, at time.Time) error {
	stamp := formatTime(at)
	if _, err := r.helper.Exec(ctx,
		`UPDATE users SET team_id = NULL, updated_at = ? WHERE team_id = ?`,
		stamp, teamID,
	); err != nil {
		return r.mapper.MapError(err)
	}
	if len(userIDs) == 0 {
		return nil
	}

	args := make([]any, 0, len(userIDs)+2)
	args = append(args, teamID, stamp)
	for _, id := range userIDs {
		args = append(args, id)
	}
	result, err := r.helper.Exec(ctx,
		`UPDATE users SET team_id = ?, updated_at = ? WHERE id IN (`+placeholders(len(userIDs))+`)`,
		args...,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if int(n) != len(userIDs) {
		return persistence.ErrNotFound
	}
	return nil
}
