package models

import (
	"github.com/google/uuid"
)

// Organization is a tenant. Slug doubles as its subdomain.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt int64     `json:"createdAt"` // epoch ms
	UpdatedAt int64     `json:"updatedAt"` // epoch ms
}

// Roles a user can hold inside an organization.
const (
	OrgRoleOwner   = "owner"
	OrgRoleAdmin   = "admin"
	OrgRoleDentist = "dentist"
	OrgRoleStaff   = "staff"
)

// ValidOrgRole reports whether role is one of the organization roles.
func ValidOrgRole(role string) bool {
	switch role {
	case OrgRoleOwner, OrgRoleAdmin, OrgRoleDentist, OrgRoleStaff:
		return true
	}
	return false
}

// Membership is an organization together with the caller's role in it.
type Membership struct {
	Organization
	Role string `json:"role"`
}
