package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/prepgen-backend/internal/apperror"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/repository"
)

// AdminService handles staff accounts and their role permissions.
type AdminService struct {
	adminRepo   *repository.AdminRepository
	roleRepo    *repository.RoleRepository
	authService *AuthService
}

// NewAdminService creates a new AdminService.
func NewAdminService(adminRepo *repository.AdminRepository, roleRepo *repository.RoleRepository, authService *AuthService) *AdminService {
	return &AdminService{adminRepo: adminRepo, roleRepo: roleRepo, authService: authService}
}

// Authenticate checks credentials and returns the admin with its permission codes.
func (s *AdminService) Authenticate(ctx context.Context, email, password string) (*model.Admin, []string, error) {
	admin, err := s.adminRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if err := s.authService.CheckPassword(admin.PasswordHash, password); err != nil {
		return nil, nil, err
	}

	perms, err := s.roleRepo.GetPermissionsByRoleID(ctx, admin.RoleID)
	if err != nil {
		return nil, nil, err
	}
	return admin, perms, nil
}

// GetByID retrieves an admin by ID.
func (s *AdminService) GetByID(ctx context.Context, id int) (*model.Admin, error) {
	admin, err := s.adminRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "admin", id)
	}
	return admin, nil
}

// List returns all staff accounts.
func (s *AdminService) List(ctx context.Context) ([]model.Admin, error) {
	admins, err := s.adminRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if admins == nil {
		admins = []model.Admin{}
	}
	return admins, nil
}

// ListRoles lists the seeded roles with their permissions.
func (s *AdminService) ListRoles(ctx context.Context) ([]model.RoleWithPermissions, error) {
	roles, err := s.roleRepo.ListWithPermissions(ctx)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []model.RoleWithPermissions{}
	}
	return roles, nil
}

// Create provisions an admin with a hashed password.
func (s *AdminService) Create(ctx context.Context, req model.CreateAdminRequest) (*model.Admin, error) {
	hashed, err := s.authService.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	admin := &model.Admin{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hashed,
		RoleID:       req.RoleID,
	}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrEmailTaken
		case errors.Is(err, repository.ErrInUse):
			return nil, apperror.NewNotFound("role", req.RoleID)
		}
		return nil, err
	}
	return admin, nil
}

// AssignRole moves the admin with email to the named role.
func (s *AdminService) AssignRole(ctx context.Context, email, roleName string) error {
	role, err := s.roleRepo.GetByName(ctx, roleName)
	if err != nil {
		return notFound(err, "role", roleName)
	}
	ok, err := s.adminRepo.UpdateRole(ctx, email, role.ID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewNotFound("admin", email)
	}
	return nil
}
