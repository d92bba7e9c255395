package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/response"
	"github.com/stemsi/prepgen-backend/internal/service"
	"github.com/stemsi/prepgen-backend/internal/validator"
)

// StudentManagementHandler serves the admin student roster.
type StudentManagementHandler struct {
	studentService *service.StudentService
	attemptService *service.AttemptService
}

func NewStudentManagementHandler(
	studentService *service.StudentService,
	attemptService *service.AttemptService,
) *StudentManagementHandler {
	return &StudentManagementHandler{
		studentService: studentService,
		attemptService: attemptService,
	}
}

// ListStudents godoc
// GET /api/v1/admin/students?search=&page=&per_page=
func (h *StudentManagementHandler) ListStudents(c *gin.Context) {
	var q model.StudentListQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	students, pagination, err := h.studentService.List(c.Request.Context(), q)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"students": students}, pagination)
}

// GetStudent godoc
// GET /api/v1/admin/students/:id
func (h *StudentManagementHandler) GetStudent(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	student, err := h.studentService.GetByID(c.Request.Context(), id)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// CreateStudent godoc
// POST /api/v1/admin/students
func (h *StudentManagementHandler) CreateStudent(c *gin.Context) {
	var req model.RegisterStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.studentService.Register(c.Request.Context(), req)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"student": student})
}

// UpdateStudent godoc
// PUT /api/v1/admin/students/:id
// Updates a student's details, and the password when one is given.
func (h *StudentManagementHandler) UpdateStudent(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	var req model.UpdateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.studentService.Update(c.Request.Context(), id, req)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// DeleteStudent godoc
// DELETE /api/v1/admin/students/:id
func (h *StudentManagementHandler) DeleteStudent(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	if err := h.studentService.Delete(c.Request.Context(), id); err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "student deleted successfully"})
}

// ListStudentAttempts godoc
// GET /api/v1/admin/students/:id/attempts?page=&per_page=
// A student's attempt history across subjects, newest first.
func (h *StudentManagementHandler) ListStudentAttempts(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	student, err := h.studentService.GetByID(ctx, id)
	if err != nil {
		failWithError(c, err)
		return
	}

	page, perPage := pageQuery(c)
	attempts, pagination, err := h.attemptService.ListForStudent(ctx, student.ID, page, perPage)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"student": student, "attempts": attempts}, pagination)
}

// ResetStudentSession godoc
// POST /api/v1/admin/students/:id/reset-session
// Signs the student out on every device. Attempts in progress keep running.
func (h *StudentManagementHandler) ResetStudentSession(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	if err := h.studentService.ResetSession(c.Request.Context(), id); err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "student session reset successfully"})
}
