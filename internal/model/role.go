package model

import (
	"slices"
	"time"
)

// Seeded staff roles. Permissions per role live in role_permissions.
const (
	RoleSuperAdmin    = "super_admin"
	RoleContentAuthor = "content_author"
	RoleReviewer      = "reviewer"
)

// RoleNames lists the seeded roles in privilege order.
var RoleNames = []string{RoleSuperAdmin, RoleContentAuthor, RoleReviewer}

// IsRoleName reports whether name is one of the seeded roles.
func IsRoleName(name string) bool {
	return slices.Contains(RoleNames, name)
}

type Role struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleWithPermissions is a role as listed on the admin roles endpoint.
type RoleWithPermissions struct {
	Role
	Permissions []Permission `json:"permissions"`
}

