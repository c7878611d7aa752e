package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/taskboard/internal/application"
	"github.com/example/taskboard/internal/persistence"
)

// UserRepository stores accounts in the users table.
type UserRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const userColumns = `id, email, name, role, is_active, team_id, created_at, updated_at`

// CreateUser inserts a new user with its password hash.
func (r *UserRepository) CreateUser(ctx context.Context, creds application.UserCredentials) (application.User, error) {
	user := creds.User
	if user.ID == "" || creds.PasswordHash == "" {
		return application.User{}, persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO users (id, email, name, password_hash, role, is_active, team_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		user.ID,
		normalizeEmail(user.Email),
		user.Name,
		creds.PasswordHash,
		string(user.Role),
		user.Active,
		nullableString(user.TeamID),
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if err != nil {
		return application.User{}, r.mapper.MapError(err)
	}

	return r.GetUser(ctx, user.ID)
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (application.User, error) {
	if id == "" {
		return application.User{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		return application.User{}, r.mapper.MapError(err)
	}
	return user, nil
}

// GetUserCredentials retrieves a user together with the stored password hash.
func (r *UserRepository) GetUserCredentials(ctx context.Context, id string) (application.UserCredentials, error) {
	return r.credentials(ctx, `WHERE id = ?`, id)
}

// FindCredentialsByLogin looks a user up by name or email, case-insensitively.
func (r *UserRepository) FindCredentialsByLogin(ctx context.Context, login string) (application.UserCredentials, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return application.UserCredentials{}, persistence.ErrNotFound
	}
	return r.credentials(ctx, `WHERE name = ? OR email = ? ORDER BY (name = ?) DESC LIMIT 1`, login, normalizeEmail(login), login)
}

func (r *UserRepository) credentials(ctx context.Context, where string, args ...any) (application.UserCredentials, error) {
	query := `SELECT ` + userColumns + `, password_hash FROM users ` + where

	var (
		creds     application.UserCredentials
		role      string
		teamID    sql.NullString
		createdAt string
		updatedAt string
	)
	err := r.helper.QueryRow(ctx, query, args...).Scan(
		&creds.User.ID,
		&creds.User.Email,
		&creds.User.Name,
		&role,
		&creds.User.Active,
		&teamID,
		&createdAt,
		&updatedAt,
		&creds.PasswordHash,
	)
	if err != nil {
		return application.UserCredentials{}, r.mapper.MapError(err)
	}
	if err := fillUser(&creds.User, role, teamID, createdAt, updatedAt); err != nil {
		return application.UserCredentials{}, err
	}
	return creds, nil
}

// UpdateUser writes the mutable profile fields of a user.
func (r *UserRepository) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	if user.ID == "" {
		return application.User{}, persistence.ErrNotFound
	}

	query := `
		UPDATE users
		SET email = ?, name = ?, role = ?, is_active = ?, team_id = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		normalizeEmail(user.Email),
		user.Name,
		string(user.Role),
		user.Active,
		nullableString(user.TeamID),
		formatTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return application.User{}, r.mapper.MapError(err)
	}
	if err := expectAffected(result); err != nil {
		return application.User{}, err
	}

	return r.GetUser(ctx, user.ID)
}

// UpdatePasswordHash replaces the stored password hash.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, hash string, updatedAt time.Time) error {
	if hash == "" {
		return persistence.ErrConstraintViolation
	}
	result, err := r.helper.Exec(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, formatTime(updatedAt), id,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return expectAffected(result)
}

// DeleteUser removes a user. Dependent rows follow the foreign key rules.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return expectAffected(result)
}

// ListUsers returns all users ordered by name.
func (r *UserRepository) ListUsers(ctx context.Context) ([]application.User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY name COLLATE NOCASE, id`)
}

// ListTeamMembers returns the users belonging to a team ordered by name.
func (r *UserRepository) ListTeamMembers(ctx context.Context, teamID string) ([]application.User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE team_id = ? ORDER BY name COLLATE NOCASE, id`, teamID)
}

// MissingUserIDs returns the ids from the input that have no matching user.
func (r *UserRepository) MissingUserIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.helper.Query(ctx, `SELECT id FROM users WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]application.User, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var users []application.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (application.User, error) {
	var (
		user      application.User
		role      string
		teamID    sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &role, &user.Active, &teamID, &createdAt, &updatedAt); err != nil {
		return application.User{}, err
	}
	if err := fillUser(&user, role, teamID, createdAt, updatedAt); err != nil {
		return application.User{}, err
	}
	return user, nil
}

func fillUser(user *application.User, role string, teamID sql.NullString, createdAt, updatedAt string) error {
	var err error
	user.Role = application.Role(role)
	user.TeamID = stringPtr(teamID)
	if user.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return err
	}
	if user.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
