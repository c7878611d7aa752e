package application

import "strings"

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// ParseRole converts a wire value into a Role.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	return role, role.Valid()
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

func (p Principal) has(roles ...Role) bool {
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

// requireRole fails with ErrForbidden unless the principal holds one of roles.
func requireRole(p Principal, roles ...Role) error {
	if p.UserID == "" {
		return ErrUnauthenticated
	}
	if !p.has(roles...) {
		return ErrForbidden
	}
	return nil
}

// requireSelfOrRole lets a principal act on their own records, or on anyone's when they
// hold one of roles.
func requireSelfOrRole(p Principal, userID string, roles ...Role) error {
	if p.UserID == "" {
		return ErrUnauthenticated
	}
	if p.UserID == userID {
		return nil
	}
	return requireRole(p, roles...)
}

func requireAuthenticated(p Principal) error {
	if p.UserID == "" {
		return ErrUnauthenticated
	}
	return nil
}
