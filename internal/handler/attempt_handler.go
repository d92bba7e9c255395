package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/prepgen-backend/internal/middleware"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/response"
	"github.com/stemsi/prepgen-backend/internal/service"
	"github.com/stemsi/prepgen-backend/internal/validator"
)

// AttemptHandler handles attempt endpoints for students and admins.
type AttemptHandler struct {
	attemptService *service.AttemptService
	paperService   *service.PaperService
	exportService  *service.ExportService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(
	attemptService *service.AttemptService,
	paperService *service.PaperService,
	exportService *service.ExportService,
) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		paperService:   paperService,
		exportService:  exportService,
	}
}

// studentAttempt resolves the caller and the :attempt_id parameter.
func studentAttempt(c *gin.Context) (int, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return 0, uuid.Nil, false
	}
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return 0, uuid.Nil, false
	}
	return claims.UserID, attemptID, true
}

func sendExport(c *gin.Context, export *service.Export) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, service.XLSXContentType, export.Data)
}

// ─── Student ────────────────────────────────────────────────────────

// ListMine godoc
// GET /api/v1/student/attempts
func (h *AttemptHandler) ListMine(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, perPage := pageQuery(c)
	attempts, pagination, err := h.attemptService.ListForStudent(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts}, pagination)
}

// GetMine godoc
// GET /api/v1/student/attempts/:attempt_id
func (h *AttemptHandler) GetMine(c *gin.Context) {
	studentID, attemptID, ok := studentAttempt(c)
	if !ok {
		return
	}

	detail, err := h.attemptService.Get(c.Request.Context(), attemptID, studentID)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": detail})
}

// GetPaper godoc
// GET /api/v1/student/attempts/:attempt_id/paper
// Returns the questions of an attempt without correct options.
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	studentID, attemptID, ok := studentAttempt(c)
	if !ok {
		return
	}

	paper, err := h.paperService.GetPaper(c.Request.Context(), attemptID, studentID)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// SaveAnswer godoc
// PUT /api/v1/student/attempts/:attempt_id/answers
// Autosaves one answer. The answer is persisted asynchronously.
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	studentID, attemptID, ok := studentAttempt(c)
	if !ok {
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.attemptService.Autosave(c.Request.Context(), attemptID, studentID, questionID, req.Option); err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// Submit godoc
// POST /api/v1/student/attempts/:attempt_id/submit
// Scores the attempt. Submitted answers override autosaved ones.
func (h *AttemptHandler) Submit(c *gin.Context) {
	studentID, attemptID, ok := studentAttempt(c)
	if !ok {
		return
	}

	var req model.SubmitAttemptRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	detail, err := h.attemptService.Submit(c.Request.Context(), attemptID, studentID, req.Answers)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": detail})
}

// ExportMine godoc
// GET /api/v1/student/attempts/:attempt_id/export
// Downloads the attempt report as an .xlsx workbook.
func (h *AttemptHandler) ExportMine(c *gin.Context) {
	studentID, attemptID, ok := studentAttempt(c)
	if !ok {
		return
	}

	export, err := h.exportService.AttemptReport(c.Request.Context(), attemptID, studentID)
	if err != nil {
		failWithError(c, err)
		return
	}
	sendExport(c, export)
}

// ─── Admin ──────────────────────────────────────────────────────────

// ListResults godoc
// GET /api/v1/admin/attempts?subject_id=
func (h *AttemptHandler) ListResults(c *gin.Context) {
	var subjectID *int
	if raw := c.Query("subject_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id < 1 {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"subject_id": "subject_id must be a positive integer"})
			return
		}
		subjectID = &id
	}

	page, perPage := pageQuery(c)
	results, pagination, err := h.attemptService.ListResults(c.Request.Context(), subjectID, page, perPage)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

// GetAttempt godoc
// GET /api/v1/admin/attempts/:attempt_id
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	detail, err := h.attemptService.Get(c.Request.Context(), attemptID, 0)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": detail})
}

// ForceComplete godoc
// POST /api/v1/admin/attempts/:attempt_id/force-complete
// Scores an in-progress attempt with whatever the student has saved.
func (h *AttemptHandler) ForceComplete(c *gin.Context) {
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	detail, err := h.attemptService.ForceComplete(c.Request.Context(), attemptID)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": detail})
}

// Analytics godoc
// GET /api/v1/admin/subjects/:id/analytics
func (h *AttemptHandler) Analytics(c *gin.Context) {
	subjectID, ok := intParam(c, "id")
	if !ok {
		return
	}

	analytics, err := h.attemptService.Analytics(c.Request.Context(), subjectID)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"analytics": analytics})
}

// ExportAnalytics godoc
// GET /api/v1/admin/subjects/:id/analytics/export
func (h *AttemptHandler) ExportAnalytics(c *gin.Context) {
	subjectID, ok := intParam(c, "id")
	if !ok {
		return
	}

	export, err := h.exportService.SubjectAnalytics(c.Request.Context(), subjectID)
	if err != nil {
		failWithError(c, err)
		return
	}
	sendExport(c, export)
}
