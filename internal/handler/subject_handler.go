package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/response"
	"github.com/stemsi/prepgen-backend/internal/service"
	"github.com/stemsi/prepgen-backend/internal/validator"
)

// SubjectHandler handles subject and chapter endpoints.
type SubjectHandler struct {
	subjectService *service.SubjectService
}

func NewSubjectHandler(subjectService *service.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjectService: subjectService}
}

// Catalogue godoc
// GET /api/v1/public/subjects
// Lists every subject with its chapters. Served from Redis when warm.
func (h *SubjectHandler) Catalogue(c *gin.Context) {
	catalogue, err := h.subjectService.Catalogue(c.Request.Context())
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"subjects": catalogue})
}

// GetAll godoc
// GET /api/v1/admin/subjects
func (h *SubjectHandler) GetAll(c *gin.Context) {
	subjects, err := h.subjectService.GetAll(c.Request.Context())
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"subjects": subjects})
}

// Get godoc
// GET /api/v1/admin/subjects/:id
func (h *SubjectHandler) Get(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	subject, err := h.subjectService.GetByID(c.Request.Context(), id)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"subject": subject})
}

// Create godoc
// POST /api/v1/admin/subjects
func (h *SubjectHandler) Create(c *gin.Context) {
	var req model.CreateSubjectRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	subject, err := h.subjectService.Create(c.Request.Context(), req)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"subject": subject})
}

// Update godoc
// PUT /api/v1/admin/subjects/:id
func (h *SubjectHandler) Update(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	var req model.UpdateSubjectRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	subject, err := h.subjectService.Update(c.Request.Context(), id, req)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"subject": subject})
}

// Delete godoc
// DELETE /api/v1/admin/subjects/:id
func (h *SubjectHandler) Delete(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	if err := h.subjectService.Delete(c.Request.Context(), id); err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "subject deleted successfully"})
}

// ─── Chapters ───────────────────────────────────────────────────────

// ListChapters godoc
// GET /api/v1/admin/subjects/:id/chapters
func (h *SubjectHandler) ListChapters(c *gin.Context) {
	subjectID, ok := intParam(c, "id")
	if !ok {
		return
	}

	chapters, err := h.subjectService.ListChapters(c.Request.Context(), subjectID)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"chapters": chapters})
}

// CreateChapter godoc
// POST /api/v1/admin/subjects/:id/chapters
func (h *SubjectHandler) CreateChapter(c *gin.Context) {
	subjectID, ok := intParam(c, "id")
	if !ok {
		return
	}

	var req model.ChapterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	chapter, err := h.subjectService.CreateChapter(c.Request.Context(), subjectID, req)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"chapter": chapter})
}

// UpdateChapter godoc
// PUT /api/v1/admin/subjects/:id/chapters/:chapter_id
func (h *SubjectHandler) UpdateChapter(c *gin.Context) {
	subjectID, ok := intParam(c, "id")
	if !ok {
		return
	}
	chapterID, ok := intParam(c, "chapter_id")
	if !ok {
		return
	}

	var req model.ChapterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	chapter, err := h.subjectService.UpdateChapter(c.Request.Context(), subjectID, chapterID, req)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"chapter": chapter})
}

// DeleteChapter godoc
// DELETE /api/v1/admin/subjects/:id/chapters/:chapter_id
func (h *SubjectHandler) DeleteChapter(c *gin.Context) {
	subjectID, ok := intParam(c, "id")
	if !ok {
		return
	}
	chapterID, ok := intParam(c, "chapter_id")
	if !ok {
		return
	}

	if err := h.subjectService.DeleteChapter(c.Request.Context(), subjectID, chapterID); err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "chapter deleted successfully"})
}
