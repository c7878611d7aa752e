package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/taskboard/internal/persistence"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, creds UserCredentials) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserCredentials(ctx context.Context, id string) (UserCredentials, error)
	FindCredentialsByLogin(ctx context.Context, login string) (UserCredentials, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string, updatedAt time.Time) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)
}

const minNameLength = 2

// UserService orchestrates registration, profile changes and account administration.
type UserService struct {
	users       UserRepository
	tx          Transactor
	hasher      PasswordHasher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, tx Transactor, hasher PasswordHasher, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, tx, hasher, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specific logger.
func NewUserServiceWithLogger(users UserRepository, tx Transactor, hasher PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hasher == nil {
		hasher = NewArgon2idHasher(Argon2idParams{})
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:       users,
		tx:          defaultTransactor(tx),
		hasher:      hasher,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

func (s *UserService) ready() error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}
	return nil
}

// Register creates a staff account. Callers that are already signed in are rejected.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (user User, err error) {
	if err = s.ready(); err != nil {
		return
	}

	input := RegisterInput{
		Email:    normalizeEmail(params.Input.Email),
		Name:     strings.TrimSpace(params.Input.Name),
		Password: params.Input.Password,
	}
	logger := s.loggerWith(ctx, "Register", "email", input.Email)
	defer func() {
		logOutcome(ctx, logger, err, "user registered", "user_id", user.ID)
	}()

	if params.Principal != nil && params.Principal.UserID != "" {
		err = ErrAlreadyRegistered
		return
	}
	if vErr := validateInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	user, err = s.create(ctx, input, RoleStaff)
	return
}

func (s *UserService) create(ctx context.Context, input RegisterInput, role Role) (User, error) {
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	creds := UserCredentials{
		User: User{
			ID:        s.idGenerator(),
			Email:     input.Email,
			Name:      input.Name,
			Role:      role,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: hash,
	}

	user, err := s.users.CreateUser(ctx, creds)
	if err != nil {
		return User{}, fromUserWrite(err)
	}
	return user, nil
}

// EnsureAdmin creates an administrator with the given credentials unless an account with
// that email already exists. It reports whether a user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, input RegisterInput) (user User, created bool, err error) {
	if err = s.ready(); err != nil {
		return
	}

	input.Email = normalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	logger := s.loggerWith(ctx, "EnsureAdmin", "email", input.Email)
	defer func() {
		logOutcome(ctx, logger, err, "administrator ensured", "user_id", user.ID, "created", created)
	}()

	if vErr := validateInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, findErr := s.users.FindCredentialsByLogin(ctx, input.Email)
		if findErr == nil {
			user = existing.User
			return nil
		}
		if !errors.Is(findErr, persistence.ErrNotFound) {
			return findErr
		}
		var createErr error
		user, createErr = s.create(ctx, input, RoleAdmin)
		if createErr != nil {
			return createErr
		}
		created = true
		return nil
	})
	return
}

// Me returns the account of the caller.
func (s *UserService) Me(ctx context.Context, principal Principal) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	if err := requireAuthenticated(principal); err != nil {
		return User{}, err
	}
	user, err := s.users.GetUser(ctx, principal.UserID)
	if err != nil {
		return User{}, fromStore(err, ErrUserNotFound)
	}
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, principal Principal, input ChangePasswordInput) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ChangePassword", "principal_id", principal.UserID)
	defer func() {
		logOutcome(ctx, logger, err, "password changed")
	}()

	if err = requireAuthenticated(principal); err != nil {
		return
	}
	if vErr := validateInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		creds, getErr := s.users.GetUserCredentials(ctx, principal.UserID)
		if getErr != nil {
			return fromStore(getErr, ErrUserNotFound)
		}
		if verifyErr := s.hasher.Verify(creds.PasswordHash, input.OldPassword); verifyErr != nil {
			if errors.Is(verifyErr, ErrInvalidCredentials) {
				return fieldError("old_password", "old password is incorrect")
			}
			return verifyErr
		}
		hash, hashErr := s.hasher.Hash(input.NewPassword)
		if hashErr != nil {
			return fmt.Errorf("hash password: %w", hashErr)
		}
		return fromStore(s.users.UpdatePasswordHash(ctx, principal.UserID, hash, s.now().UTC()), ErrUserNotFound)
	})
	return
}

// ChangeName renames the caller.
func (s *UserService) ChangeName(ctx context.Context, principal Principal, name string) (user User, err error) {
	if err = s.ready(); err != nil {
		return
	}

	name = strings.TrimSpace(name)
	logger := s.loggerWith(ctx, "ChangeName", "principal_id", principal.UserID)
	defer func() {
		logOutcome(ctx, logger, err, "name changed")
	}()

	if err = requireAuthenticated(principal); err != nil {
		return
	}
	switch n := utf8.RuneCountInString(name); {
	case n < minNameLength:
		err = fieldError("name", fmt.Sprintf("name must be at least %d characters", minNameLength))
		return
	case n > 150:
		err = fieldError("name", "name must be at most 150 characters")
		return
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, getErr := s.users.GetUser(ctx, principal.UserID)
		if getErr != nil {
			return fromStore(getErr, ErrUserNotFound)
		}
		current.Name = name
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

// SetActive enables or disables an account. Administrators only.
func (s *UserService) SetActive(ctx context.Context, principal Principal, userID string, active bool) (user User, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "SetActive", "principal_id", principal.UserID, "user_id", userID, "active", active)
	defer func() {
		logOutcome(ctx, logger, err, "account status changed")
	}()

	if err = requireRole(principal, RoleAdmin); err != nil {
		return
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, getErr := s.users.GetUser(ctx, userID)
		if getErr != nil {
			return fromStore(getErr, ErrUserNotFound)
		}
		current.Active = active
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

// DeleteUser removes an account. Administrators only.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteUser", "principal_id", principal.UserID, "user_id", userID)
	defer func() {
		logOutcome(ctx, logger, err, "user deleted")
	}()

	if err = requireRole(principal, RoleAdmin); err != nil {
		return
	}
	err = fromStore(s.users.DeleteUser(ctx, userID), ErrUserNotFound)
	return
}

// ListUsers returns every account. Administrators only.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := requireRole(principal, RoleAdmin); err != nil {
		return nil, err
	}
	return s.users.ListUsers(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
