package repository

import (
	"context"

	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/model"
)

// RoleRepository handles role and permission data access. Roles and their
// permissions are seeded by migrations and read-only at runtime.
type RoleRepository struct {
	db database.DBTX
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(db database.DBTX) *RoleRepository {
	return &RoleRepository{db: db}
}

// GetPermissionsByRoleID retrieves all permission codes for a given role.
func (r *RoleRepository) GetPermissionsByRoleID(ctx context.Context, roleID int) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT p.code
		 FROM permissions p
		 JOIN role_permissions rp ON p.id = rp.permission_id
		 WHERE rp.role_id = $1
		 ORDER BY p.code`, roleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var permissions []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		permissions = append(permissions, code)
	}
	return permissions, rows.Err()
}

// GetByName retrieves a role by its unique name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*model.Role, error) {
	role := &model.Role{}
	err := r.db.QueryRow(ctx, `SELECT id, name, created_at FROM roles WHERE name = $1`, name).
		Scan(&role.ID, &role.Name, &role.CreatedAt)
	if err != nil {
		return nil, err
	}
	return role, nil
}

// ListWithPermissions retrieves every role with its permission codes in one query.
func (r *RoleRepository) ListWithPermissions(ctx context.Context) ([]model.RoleWithPermissions, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.name, r.created_at,
		        COALESCE(array_agg(p.code ORDER BY p.code) FILTER (WHERE p.code IS NOT NULL), '{}')
		 FROM roles r
		 LEFT JOIN role_permissions rp ON rp.role_id = r.id
		 LEFT JOIN permissions p ON p.id = rp.permission_id
		 GROUP BY r.id
		 ORDER BY r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []model.RoleWithPermissions
	for rows.Next() {
		var role model.RoleWithPermissions
		var codes []string
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &codes); err != nil {
			return nil, err
		}
		role.Permissions = make([]model.Permission, len(codes))
		for i, code := range codes {
			role.Permissions[i] = model.Permission(code)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
