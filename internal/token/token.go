// Package token issues and verifies the signed bearer tokens used to authenticate API callers.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is the lifetime of an issued token when none is configured.
const DefaultTTL = 20 * time.Minute

// ErrUnauthenticated is the kind shared by every verification failure.
var ErrUnauthenticated = errors.New("token: unauthenticated")

type verifyError struct{ msg string }

func (e *verifyError) Error() string { return "token: " + e.msg }

func (e *verifyError) Unwrap() error { return ErrUnauthenticated }

var (
	ErrMissingToken        error = &verifyError{"missing token"}
	ErrInvalidToken        error = &verifyError{"invalid token"}
	ErrTokenExpired        error = &verifyError{"token expired"}
	ErrMalformedToken      error = &verifyError{"token is missing subject or id"}
	ErrMissingExpiry       error = &verifyError{"token has no expiry"}
	ErrInvalidExpiryFormat error = &verifyError{"token expiry is not an integer"}
	ErrTokenRevoked        error = &verifyError{"token revoked"}
)

// Identity is the caller described by a verified token.
type Identity struct {
	Username  string
	UserID    string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

// Denylist stores the ids of revoked tokens until they would have expired.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Options configures a Service.
type Options struct {
	Secret   []byte
	TTL      time.Duration
	Now      func() time.Time
	NewID    func() string
	Denylist Denylist
}

// Service signs tokens with HS256 and verifies them.
type Service struct {
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	newID    func() string
	denylist Denylist
	parser   *jwt.Parser
}

// NewService validates opts and builds a Service.
func NewService(opts Options) (*Service, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("token: secret is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{
		secret:   opts.Secret,
		ttl:      opts.TTL,
		now:      opts.Now,
		newID:    opts.NewID,
		denylist: opts.Denylist,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithJSONNumber(),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// TTL reports the lifetime given to issued tokens.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue signs a token for the given user.
func (s *Service) Issue(username, userID, role string) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl).Truncate(time.Second)
	claims := jwt.MapClaims{
		"sub":  username,
		"id":   userID,
		"role": role,
		"exp":  expiresAt.Unix(),
		"iat":  now.Unix(),
		"jti":  s.newID(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks raw and returns the identity it carries. An integer expiry in the past is
// reported as ErrTokenExpired before the signature is looked at.
func (s *Service) Verify(ctx context.Context, raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrMissingToken
	}
	now := s.now().UTC()

	unverified := jwt.MapClaims{}
	if _, _, err := s.parser.ParseUnverified(raw, unverified); err != nil {
		return Identity{}, ErrInvalidToken
	}

	expValue, hasExp := unverified["exp"]
	expSeconds, expIsInt := integerClaim(expValue)
	if hasExp && expIsInt && now.Unix() > expSeconds {
		return Identity{}, ErrTokenExpired
	}

	claims := jwt.MapClaims{}
	if _, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return Identity{}, ErrInvalidToken
	}

	username, _ := claims["sub"].(string)
	userID, _ := claims["id"].(string)
	if username == "" || userID == "" {
		return Identity{}, ErrMalformedToken
	}
	if !hasExp {
		return Identity{}, ErrMissingExpiry
	}
	if !expIsInt {
		return Identity{}, ErrInvalidExpiryFormat
	}

	role, _ := claims["role"].(string)
	tokenID, _ := claims["jti"].(string)
	identity := Identity{
		Username:  username,
		UserID:    userID,
		Role:      role,
		TokenID:   tokenID,
		ExpiresAt: time.Unix(expSeconds, 0).UTC(),
	}

	if tokenID != "" && s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, tokenID)
		if err != nil {
			return Identity{}, fmt.Errorf("token: check denylist: %w", err)
		}
		if revoked {
			return Identity{}, ErrTokenRevoked
		}
	}
	return identity, nil
}

// VerifyOptional is Verify for endpoints that accept anonymous callers. An empty token
// yields a nil identity and no error.
func (s *Service) VerifyOptional(ctx context.Context, raw string) (*Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	identity, err := s.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// Revoke adds the token to the denylist until it expires.
func (s *Service) Revoke(ctx context.Context, identity Identity) error {
	if s.denylist == nil || identity.TokenID == "" {
		return nil
	}
	if err := s.denylist.Revoke(ctx, identity.TokenID, identity.ExpiresAt); err != nil {
		return fmt.Errorf("token: revoke: %w", err)
	}
	return nil
}

func integerClaim(value any) (int64, bool) {
	switch v := value.(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
