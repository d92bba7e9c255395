package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/prepgen-backend/internal/middleware"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/response"
	"github.com/stemsi/prepgen-backend/internal/service"
	"github.com/stemsi/prepgen-backend/internal/validator"
)

// PaperHandler handles paper generation endpoints.
type PaperHandler struct {
	paperService *service.PaperService
}

// NewPaperHandler creates a new PaperHandler.
func NewPaperHandler(paperService *service.PaperService) *PaperHandler {
	return &PaperHandler{paperService: paperService}
}

func bindGenerationConfig(c *gin.Context) (model.GenerationConfig, bool) {
	var req model.GeneratePaperRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return model.GenerationConfig{}, false
	}
	return req.ToConfig(), true
}

// StudentPreview godoc
// POST /api/v1/student/papers/preview
// Dry-runs generation and reports what the paper would contain, without
// answers. A shortfall is reported in the body with success=false.
func (h *PaperHandler) StudentPreview(c *gin.Context) {
	cfg, ok := bindGenerationConfig(c)
	if !ok {
		return
	}

	res, err := h.paperService.Preview(c.Request.Context(), cfg)
	if err != nil {
		failWithError(c, err)
		return
	}

	questions, err := service.ToStudentQuestions(res.Questions)
	if err != nil {
		failWithError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"success":    res.Success,
		"error":      res.Error,
		"questions":  questions,
		"statistics": res.Statistics,
	})
}

// AdminPreview godoc
// POST /api/v1/admin/papers/preview
// Same as the student preview but includes correct options.
func (h *PaperHandler) AdminPreview(c *gin.Context) {
	cfg, ok := bindGenerationConfig(c)
	if !ok {
		return
	}

	res, err := h.paperService.Preview(c.Request.Context(), cfg)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// Start godoc
// POST /api/v1/student/papers
// Generates a paper and opens a timed attempt on it. Only one attempt per
// subject and paper type may be in progress.
func (h *PaperHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	cfg, ok := bindGenerationConfig(c)
	if !ok {
		return
	}

	result, err := h.paperService.Start(c.Request.Context(), claims.UserID, cfg)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}
