package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/taskboard/internal/persistence"
	"github.com/example/taskboard/internal/token"
)

// CredentialStore exposes user credential lookup operations required by the auth service.
type CredentialStore interface {
	FindCredentialsByLogin(ctx context.Context, login string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// TokenService issues, verifies and revokes bearer tokens.
type TokenService interface {
	Issue(username, userID, role string) (string, time.Time, error)
	Verify(ctx context.Context, raw string) (token.Identity, error)
	VerifyOptional(ctx context.Context, raw string) (*token.Identity, error)
	Revoke(ctx context.Context, identity token.Identity) error
}

// AuthService coordinates login, logout and bearer token authentication.
type AuthService struct {
	credentials CredentialStore
	tokens      TokenService
	hasher      PasswordHasher
	logger      *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, tokens TokenService, hasher PasswordHasher) *AuthService {
	return NewAuthServiceWithLogger(credentials, tokens, hasher, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, tokens TokenService, hasher PasswordHasher, logger *slog.Logger) *AuthService {
	if hasher == nil {
		hasher = NewArgon2idHasher(Argon2idParams{})
	}
	return &AuthService{
		credentials: credentials,
		tokens:      tokens,
		hasher:      hasher,
		logger:      defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

func (s *AuthService) ready() error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.credentials == nil {
		return fmt.Errorf("credential store not configured")
	}
	if s.tokens == nil {
		return fmt.Errorf("token service not configured")
	}
	return nil
}

// Login checks a user name or email and password and issues a bearer token.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (result LoginResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	username := strings.TrimSpace(params.Username)
	logger := s.loggerWith(ctx, "Login", "username", username)
	defer func() {
		logOutcome(ctx, logger, err, "login succeeded", "user_id", result.User.ID)
	}()

	if username == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.FindCredentialsByLogin(ctx, username)
	if err != nil {
		err = fromStore(err, ErrInvalidCredentials)
		return
	}

	if err = s.hasher.Verify(creds.PasswordHash, params.Password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			err = ErrInvalidCredentials
		}
		return
	}
	if !creds.User.Active {
		err = ErrAccountDisabled
		return
	}

	var (
		raw       string
		expiresAt time.Time
	)
	raw, expiresAt, err = s.tokens.Issue(creds.User.Name, creds.User.ID, string(creds.User.Role))
	if err != nil {
		return
	}

	result = LoginResult{User: creds.User, Token: raw, ExpiresAt: expiresAt}
	return
}

// Authenticate verifies a bearer token and resolves the caller from storage. The stored
// role wins over the role embedded in the token.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (Principal, token.Identity, error) {
	if err := s.ready(); err != nil {
		return Principal{}, token.Identity{}, err
	}

	identity, err := s.tokens.Verify(ctx, raw)
	if err != nil {
		return Principal{}, token.Identity{}, fromTokenError(err)
	}

	principal, err := s.resolvePrincipal(ctx, identity)
	if err != nil {
		return Principal{}, token.Identity{}, err
	}
	return principal, identity, nil
}

// AuthenticateOptional is Authenticate for endpoints that accept anonymous callers. A
// missing token yields a nil principal and no error; a token that is present but fails
// verification is still rejected.
func (s *AuthService) AuthenticateOptional(ctx context.Context, raw string) (*Principal, token.Identity, error) {
	if err := s.ready(); err != nil {
		return nil, token.Identity{}, err
	}

	identity, err := s.tokens.VerifyOptional(ctx, raw)
	if err != nil {
		return nil, token.Identity{}, fromTokenError(err)
	}
	if identity == nil {
		return nil, token.Identity{}, nil
	}

	principal, err := s.resolvePrincipal(ctx, *identity)
	if err != nil {
		return nil, token.Identity{}, err
	}
	return &principal, *identity, nil
}

func (s *AuthService) resolvePrincipal(ctx context.Context, identity token.Identity) (Principal, error) {
	user, err := s.credentials.GetUser(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, err
	}
	if !user.Active {
		return Principal{}, ErrAccountDisabled
	}
	return Principal{UserID: user.ID, Name: user.Name, Role: user.Role}, nil
}

// Logout revokes the token the caller authenticated with.
func (s *AuthService) Logout(ctx context.Context, identity token.Identity) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Logout", "principal_id", identity.UserID)
	defer func() {
		logOutcome(ctx, logger, err, "token revoked")
	}()

	if identity.TokenID == "" {
		err = ErrUnauthenticated
		return
	}
	err = s.tokens.Revoke(ctx, identity)
	return
}

// fromTokenError keeps the token failure visible while matching ErrUnauthenticated.
func fromTokenError(err error) error {
	if errors.Is(err, token.ErrUnauthenticated) {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return err
}
