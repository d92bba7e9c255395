package repository

import (
	"context"

	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/model"
)

// Staff rows always come back with their role name.
const adminSelect = `SELECT a.id, a.email, a.name, a.password_hash, a.role_id, r.name, a.created_at, a.updated_at
	FROM admins a JOIN roles r ON a.role_id = r.id`

type AdminRepository struct {
	db database.DBTX
}

func NewAdminRepository(db database.DBTX) *AdminRepository {
	return &AdminRepository{db: db}
}

func scanAdmin(row interface{ Scan(dest ...any) error }, a *model.Admin) error {
	return row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.RoleID, &a.RoleName, &a.CreatedAt, &a.UpdatedAt)
}

func (r *AdminRepository) GetByID(ctx context.Context, id int) (*model.Admin, error) {
	a := &model.Admin{}
	if err := scanAdmin(r.db.QueryRow(ctx, adminSelect+` WHERE a.id = $1`, id), a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetByEmail matches emails case-insensitively.
func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*model.Admin, error) {
	a := &model.Admin{}
	if err := scanAdmin(r.db.QueryRow(ctx, adminSelect+` WHERE LOWER(a.email) = LOWER($1)`, email), a); err != nil {
		return nil, err
	}
	return a, nil
}

// List returns every staff account grouped by role.
func (r *AdminRepository) List(ctx context.Context) ([]model.Admin, error) {
	rows, err := r.db.Query(ctx, adminSelect+` ORDER BY a.role_id, a.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []model.Admin
	for rows.Next() {
		var a model.Admin
		if err := scanAdmin(rows, &a); err != nil {
			return nil, err
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// Create inserts a new admin. A taken email returns ErrDuplicate and an
// unknown role returns ErrInUse.
func (r *AdminRepository) Create(ctx context.Context, a *model.Admin) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO admins (email, name, password_hash, role_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		a.Email, a.Name, a.PasswordHash, a.RoleID,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return mapConstraint(err)
}

// UpdateRole moves an admin to a different role. It reports false when no
// account has that email.
func (r *AdminRepository) UpdateRole(ctx context.Context, email string, roleID int) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE admins SET role_id = $1, updated_at = NOW() WHERE LOWER(email) = LOWER($2)`, roleID, email)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
