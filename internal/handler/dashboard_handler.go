package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/prepgen-backend/internal/response"
	"github.com/stemsi/prepgen-backend/internal/service"
)

// DashboardHandler serves the admin landing page figures.
type DashboardHandler struct {
	dashboardService *service.DashboardService
}

func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetDashboardData godoc
// GET /api/v1/admin/dashboard?recent=
func (h *DashboardHandler) GetDashboardData(c *gin.Context) {
	recent, _ := strconv.Atoi(c.Query("recent"))
	data, err := h.dashboardService.GetDashboardData(c.Request.Context(), recent)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, data)
}
