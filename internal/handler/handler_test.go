package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/prepgen-backend/internal/apperror"
	"github.com/stemsi/prepgen-backend/internal/database"
	"github.com/stemsi/prepgen-backend/internal/response"
	"github.com/stemsi/prepgen-backend/internal/service"
	"github.com/stemsi/prepgen-backend/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestFailWithError(t *testing.T) {
	slotTaken := fmt.Errorf("%w: %w", service.ErrAttemptInProgress,
		&apperror.StateError{Entity: "attempt slot", From: "in_progress", Action: "start another attempt"})

	tests := []struct {
		name   string
		err    error
		status int
		code   response.ErrCode
	}{
		{"bad credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
		{"wrapped email taken", fmt.Errorf("register: %w", service.ErrEmailTaken), http.StatusConflict, response.ErrEmailTaken},
		{"subject code", service.ErrSubjectCodeTaken, http.StatusConflict, response.ErrConflict},
		{"chapter name", service.ErrChapterNameTaken, http.StatusConflict, response.ErrConflict},
		{"dependents", service.ErrHasDependents, http.StatusConflict, response.ErrDependencyExists},
		{"verified question", service.ErrQuestionVerified, http.StatusConflict, response.ErrQuestionVerified},
		{"slot taken wins over state", slotTaken, http.StatusConflict, response.ErrAttemptInProgress},
		{"expired", service.ErrAttemptExpired, http.StatusConflict, response.ErrAttemptExpired},
		{"not owner", service.ErrNotOwner, http.StatusForbidden, response.ErrForbidden},
		{"config", apperror.NewConfig("total_questions", "must be positive"), http.StatusBadRequest, response.ErrInvalidConfig},
		{"insufficient", &apperror.InsufficientDataError{Requested: 10, Achieved: 7, Reason: "bank too small"},
			http.StatusUnprocessableEntity, response.ErrInsufficientQuestions},
		{"state", &apperror.StateError{Entity: "attempt", From: "completed", Action: "score"}, http.StatusConflict, response.ErrInvalidState},
		{"not found", apperror.NewNotFound("subject", 9), http.StatusNotFound, response.ErrNotFound},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, response.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var recorded []*gin.Error
			r := gin.New()
			r.GET("/", func(c *gin.Context) {
				failWithError(c, tt.err)
				recorded = c.Errors
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)

			if tt.status == http.StatusInternalServerError {
				require.Len(t, recorded, 1)
				assert.ErrorIs(t, recorded[0].Err, tt.err)
			} else {
				assert.Empty(t, recorded)
			}
		})
	}
}

func TestFailWithErrorConfigField(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		failWithError(c, apperror.NewConfig("difficulty_distribution", "must sum to 100"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	body := decode(t, w)
	require.NotNil(t, body.Error)
	assert.Equal(t, "must sum to 100", body.Error.Fields["difficulty_distribution"])
}

func TestPathParams(t *testing.T) {
	r := gin.New()
	r.GET("/int/:id", func(c *gin.Context) {
		if id, ok := intParam(c, "id"); ok {
			c.String(http.StatusOK, "%d", id)
		}
	})
	r.GET("/uuid/:id", func(c *gin.Context) {
		if id, ok := uuidParam(c, "id"); ok {
			c.String(http.StatusOK, id.String())
		}
	})

	id := uuid.New()
	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/int/42", http.StatusOK, "42"},
		{"/int/0", http.StatusBadRequest, ""},
		{"/int/-3", http.StatusBadRequest, ""},
		{"/int/abc", http.StatusBadRequest, ""},
		{"/uuid/" + id.String(), http.StatusOK, id.String()},
		{"/uuid/not-a-uuid", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, w.Body.String())
				return
			}
			body := decode(t, w)
			require.NotNil(t, body.Error)
			assert.Equal(t, response.ErrInvalidID, body.Error.Code)
		})
	}
}

func TestPageQuery(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		page, perPage := pageQuery(c)
		c.String(http.StatusOK, "%d/%d", page, perPage)
	})

	for query, want := range map[string]string{
		"":                   "1/10",
		"?page=3&per_page=5": "3/5",
		"?page=x":            "0/10",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/"+query, nil))
		assert.Equal(t, want, w.Body.String(), query)
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	tests := []struct {
		name   string
		deps   map[string]database.Pinger
		status int
		state  string
	}{
		{"all up", map[string]database.Pinger{"postgres": up, "redis": up}, http.StatusOK, "ok"},
		{"redis down", map[string]database.Pinger{"postgres": up, "redis": down}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", NewHealthHandler(tt.deps).Check)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.status, w.Code)
			var body struct {
				Status       string            `json:"status"`
				Dependencies map[string]string `json:"dependencies"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.state, body.Status)
			assert.Equal(t, "ok", body.Dependencies["postgres"])
		})
	}
}

func TestWSErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want response.ErrCode
	}{
		{fmt.Errorf("autosave: %w", service.ErrAttemptExpired), response.ErrAttemptExpired},
		{service.ErrNotOwner, response.ErrForbidden},
		{apperror.NewConfig("option", "must be A-D"), response.ErrInvalidConfig},
		{&apperror.StateError{Entity: "attempt", From: "completed", Action: "autosave"}, response.ErrInvalidState},
		{apperror.NewNotFound("attempt", uuid.Nil), response.ErrNotFound},
		{errors.New("redis: nil"), response.ErrInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, wsErrorCode(tt.err), tt.err.Error())
	}
}

func TestPreviewRejectsInvalidRequest(t *testing.T) {
	// Validation fails before the service is reached.
	h := NewPaperHandler(nil)
	r := gin.New()
	r.POST("/preview", h.AdminPreview)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing subject", `{"paper_type":"mock","practice_type":"full_syllabus","total_questions":10}`, "subject_id"},
		{"unknown paper type", `{"subject_id":1,"paper_type":"final","practice_type":"full_syllabus","total_questions":10}`, "paper_type"},
		{"distribution off 100", `{"subject_id":1,"paper_type":"mock","practice_type":"full_syllabus","total_questions":10,
			"difficulty_distribution":{"easy":30,"medium":30,"hard":30}}`, "difficulty_distribution"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/preview", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decode(t, w)
			require.NotNil(t, body.Error)
			assert.Equal(t, response.ErrValidation, body.Error.Code)
			assert.Contains(t, body.Error.Fields, tt.field)
		})
	}
}

func TestSSERawRender(t *testing.T) {
	r := gin.New()
	r.GET("/stream", func(c *gin.Context) {
		c.Render(-1, sseRaw{event: "attempt", data: `{"type":"started"}`})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.Equal(t, "event:attempt\ndata:{\"type\":\"started\"}\n\n", w.Body.String())
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
}
