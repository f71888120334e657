// Package access decides whether a caller may read aggregated analytics.
package access

import (
	"context"
	"errors"
)

// Roles a user can hold.
const (
	RoleMember     = "member"
	RoleSuperAdmin = "super_admin"
)

var (
	// ErrUnauthenticated means no caller identity was presented.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the caller is known but lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// Identity is the authenticated caller as seen by the gate.
type Identity struct {
	UserID uint
	Email  string
	Role   string
}

// Gate authorizes a caller. A nil identity is an unauthenticated caller.
type Gate interface {
	Authorize(ctx context.Context, caller *Identity) error
}

// RoleGate admits callers holding Role.
type RoleGate struct {
	Role string
}

// SuperAdminGate is the gate guarding analytics.
func SuperAdminGate() RoleGate {
	return RoleGate{Role: RoleSuperAdmin}
}

func (g RoleGate) Authorize(_ context.Context, caller *Identity) error {
	if caller == nil || caller.UserID == 0 {
		return ErrUnauthenticated
	}
	if caller.Role != g.Role {
		return ErrForbidden
	}
	return nil
}
