package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/prepgen-backend/internal/response"
	"github.com/stemsi/prepgen-backend/internal/service"
)

// failWithError writes the response for a service error. Service sentinels
// are checked before the domain error kinds because some wrap both.
// Anything unrecognised becomes a 500 with the cause attached for the request log.
func failWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
	case errors.Is(err, service.ErrEmailTaken):
		response.Fail(c, http.StatusConflict, response.ErrEmailTaken)
	case errors.Is(err, service.ErrSubjectCodeTaken), errors.Is(err, service.ErrChapterNameTaken):
		response.FailWithMessage(c, http.StatusConflict, response.ErrConflict, err.Error())
	case errors.Is(err, service.ErrHasDependents):
		response.Fail(c, http.StatusConflict, response.ErrDependencyExists)
	case errors.Is(err, service.ErrQuestionVerified):
		response.Fail(c, http.StatusConflict, response.ErrQuestionVerified)
	case errors.Is(err, service.ErrAttemptInProgress):
		response.Fail(c, http.StatusConflict, response.ErrAttemptInProgress)
	case errors.Is(err, service.ErrAttemptExpired):
		response.Fail(c, http.StatusConflict, response.ErrAttemptExpired)
	case errors.Is(err, service.ErrNotOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	default:
		if response.FailFromError(c, err) {
			return
		}
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// intParam parses a positive integer path parameter, writing 400 INVALID_ID on failure.
func intParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

// uuidParam parses a UUID path parameter, writing 400 INVALID_ID on failure.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// pageQuery reads page and per_page, leaving clamping to the services.
func pageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	return page, perPage
}
