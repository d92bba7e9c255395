package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/response"
	"github.com/stemsi/prepgen-backend/internal/service"
	"github.com/stemsi/prepgen-backend/internal/validator"
)

// AdminHandler handles staff accounts and roles.
type AdminHandler struct {
	adminService *service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// ListRoles godoc
// GET /api/v1/admin/roles
func (h *AdminHandler) ListRoles(c *gin.Context) {
	roles, err := h.adminService.ListRoles(c.Request.Context())
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"roles": roles})
}

// ListAdmins godoc
// GET /api/v1/admin/admins
func (h *AdminHandler) ListAdmins(c *gin.Context) {
	admins, err := h.adminService.List(c.Request.Context())
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"admins": admins})
}

// CreateAdmin godoc
// POST /api/v1/admin/admins
func (h *AdminHandler) CreateAdmin(c *gin.Context) {
	var req model.CreateAdminRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	admin, err := h.adminService.Create(c.Request.Context(), req)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"admin": admin})
}
