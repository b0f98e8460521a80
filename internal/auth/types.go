package auth

import "errors"

// Role represents an authorisation tier carried in access tokens.
type Role string

const (
	// RoleViewer may read devices and their state history.
	RoleViewer Role = "viewer"

	// RoleOperator may also create and modify devices, including
	// moving them in and out of IN_USE.
	RoleOperator Role = "operator"

	// RoleAdmin has everything operator can do plus deletion.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !IsValidRole(r) {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Sentinel errors for authentication operations.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrForbidden    = errors.New("insufficient permissions")
)
