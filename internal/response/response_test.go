package response

import (
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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFailFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrCode
	}{
		{"config", apperror.NewConfig("difficulty_distribution", "percentages sum to 90.00, expected 100"), http.StatusBadRequest, ErrInvalidConfig},
		{"insufficient", fmt.Errorf("start: %w", &apperror.InsufficientDataError{Requested: 10, Achieved: 4, Reason: "bank empty"}), http.StatusUnprocessableEntity, ErrInsufficientQuestions},
		{"state", &apperror.StateError{Entity: "attempt", From: "completed", Action: "be scored"}, http.StatusConflict, ErrInvalidState},
		{"not found", fmt.Errorf("get: %w", apperror.NewNotFound("attempt", "x")), http.StatusNotFound, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Set(ContextKeyRequestID, "req-1")

			require.True(t, FailFromError(c, tt.err))
			assert.Equal(t, tt.status, w.Code)

			var body Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, "req-1", body.Metadata.RequestID)
		})
	}
}

func TestFailFromErrorIgnoresUnknown(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	assert.False(t, FailFromError(c, errors.New("boom")))
	assert.Zero(t, w.Body.Len())
}

func TestFailFromErrorConfigFields(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	FailFromError(c, apperror.NewConfig("total_questions", "must be positive, got 0"))

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"total_questions": "must be positive, got 0"}, body.Error.Fields)
}

func TestFailFromErrorShortfallCounts(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	FailFromError(c, &apperror.InsufficientDataError{Requested: 30, Achieved: 22, Reason: "hard questions exhausted"})

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"requested": "30", "achieved": "22"}, body.Error.Fields)
	assert.Contains(t, body.Error.Message, "achieved 22 of 30")
}

func TestAbortFailStopsChain(t *testing.T) {
	reached := false
	r := gin.New()
	r.GET("/", func(c *gin.Context) { AbortFail(c, http.StatusForbidden, ErrForbidden) }, func(c *gin.Context) { reached = true })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, reached)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"client id kept", "abc-123_x.y", true},
		{"missing", "", false},
		{"newline rejected", "abc\nlevel=error", false},
		{"too long", strings.Repeat("a", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Body.String()
			assert.Equal(t, got, w.Header().Get(HeaderRequestID))
			if tt.keep {
				assert.Equal(t, tt.header, got)
				return
			}
			_, err := uuid.Parse(got)
			assert.NoError(t, err)
		})
	}
}
