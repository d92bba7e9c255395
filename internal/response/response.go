package response

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/prepgen-backend/internal/apperror"
)

// Response is the standardized API response envelope.
type Response struct {
	Data       any         `json:"data"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

// ErrorBody represents a structured error response.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Pagination holds pagination information.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Metadata includes request tracing and timing.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// ────────────────────────────────────────────────────────────────────────────
// Helper builders
// ────────────────────────────────────────────────────────────────────────────

// Success sends a successful JSON response with the given status code and data.
func Success(c *gin.Context, statusCode int, data any) {
	write(c, statusCode, Response{Data: data})
}

// SuccessWithPagination sends a successful response with pagination metadata.
func SuccessWithPagination(c *gin.Context, statusCode int, data any, pagination *Pagination) {
	write(c, statusCode, Response{Data: data, Pagination: pagination})
}

// Fail sends an error response with an error code and no field-level details.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	write(c, statusCode, failure(code, GetMessage(code), nil))
}

// FailWithFields sends an error response with field-level validation details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	write(c, statusCode, failure(code, GetMessage(code), fields))
}

// FailWithMessage sends an error response whose message overrides the code's default.
func FailWithMessage(c *gin.Context, statusCode int, code ErrCode, message string) {
	write(c, statusCode, failure(code, message, nil))
}

// AbortFail aborts the middleware chain and sends an error response.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.Abort()
	Fail(c, statusCode, code)
}

// FailFromError maps a domain error to its status and code and writes it.
// It returns false, writing nothing, when err is not a domain error.
//
// Generation shortfalls carry the requested and achieved counts in fields so
// clients can offer a smaller paper.
func FailFromError(c *gin.Context, err error) bool {
	var (
		cfgErr   *apperror.ConfigError
		shortErr *apperror.InsufficientDataError
	)
	switch {
	case errors.As(err, &cfgErr):
		field := cfgErr.Field
		if field == "" {
			field = "config"
		}
		FailWithFields(c, http.StatusBadRequest, ErrInvalidConfig, map[string]string{field: cfgErr.Reason})
	case errors.As(err, &shortErr):
		write(c, http.StatusUnprocessableEntity, failure(ErrInsufficientQuestions, shortErr.Error(), map[string]string{
			"requested": strconv.Itoa(shortErr.Requested),
			"achieved":  strconv.Itoa(shortErr.Achieved),
		}))
	case errors.Is(err, apperror.ErrState):
		FailWithMessage(c, http.StatusConflict, ErrInvalidState, err.Error())
	case errors.Is(err, apperror.ErrNotFound):
		Fail(c, http.StatusNotFound, ErrNotFound)
	default:
		return false
	}
	return true
}

// ────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ────────────────────────────────────────────────────────────────────────────

func failure(code ErrCode, message string, fields map[string]string) Response {
	return Response{Error: &ErrorBody{Code: code, Message: message, Fields: fields}}
}

func write(c *gin.Context, statusCode int, body Response) {
	body.Metadata = buildMetadata(c)
	c.JSON(statusCode, body)
}

func buildMetadata(c *gin.Context) Metadata {
	id := RequestID(c)
	if id == "" {
		id = uuid.New().String() // middleware not applied
	}
	return Metadata{
		RequestID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
