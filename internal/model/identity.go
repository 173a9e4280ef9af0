package model

import "github.com/google/uuid"

// RoleAdmin marks identity-provider subjects allowed to run admin actions.
const RoleAdmin = "admin"

// Identity is the authenticated caller as asserted by the identity provider.
type Identity struct {
	UserID        uuid.UUID
	Email         string
	Name          string
	EmailVerified bool
	Role          string
}

// IsAdmin reports whether the caller holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// CanView reports whether the caller may read order.
func (i *Identity) CanView(order *Order) bool {
	if i == nil {
		return false
	}
	return i.IsAdmin() || order.OwnedBy(i.UserID)
}
