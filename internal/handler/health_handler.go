package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/prepgen-backend/internal/database"
)

const healthTimeout = 3 * time.Second

// HealthHandler reports whether the backing stores are reachable.
type HealthHandler struct {
	deps map[string]database.Pinger
}

func NewHealthHandler(deps map[string]database.Pinger) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// Check godoc
// GET /health
// 200 when every dependency answers, 503 otherwise.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	deps := database.Health(ctx, h.deps)
	status, code := "ok", http.StatusOK
	for _, s := range deps {
		if s != "ok" {
			status, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, gin.H{"status": status, "dependencies": deps})
}
