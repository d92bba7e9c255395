package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/model"
	"github.com/stemsi/prepgen-backend/internal/response"
	"github.com/stemsi/prepgen-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Code
}

// ─── JWT / RBAC / session ───────────────────────────────────────────

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour}, nil)
}

func adminToken(t *testing.T, auth *service.AuthService, perms ...string) string {
	t.Helper()
	tok, err := auth.GenerateAdminToken(1, 1, perms)
	require.NoError(t, err)
	return tok
}

func TestRequireAdminJWT(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/admin", RequireAdminJWT(auth), RequirePermission(model.PermissionQuestionsRead), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetClaims(c).UserID)
	})

	tests := []struct {
		name   string
		header string
		status int
		code   response.ErrCode
	}{
		{"missing", "", http.StatusUnauthorized, response.ErrTokenRequired},
		{"garbage", "Bearer nope", http.StatusUnauthorized, response.ErrTokenInvalid},
		{"no permission", "Bearer " + adminToken(t, auth, "subjects:read"), http.StatusForbidden, response.ErrPermissionDenied},
		{"ok", "bearer " + adminToken(t, auth, "questions:read"), http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, errorCode(t, w))
			} else {
				assert.Equal(t, "1", w.Body.String())
			}
		})
	}
}

func TestRequireStudentJWTRejectsAdminToken(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/student", RequireStudentJWT(auth), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/student?token="+adminToken(t, auth), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.ErrStudentAccessOnly, errorCode(t, w))
}

func TestRequireAnyPermission(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/x", RequireAdminJWT(auth),
		RequireAnyPermission(model.PermissionReportsRead, model.PermissionAttemptsRead),
		func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, auth, "attempts:read"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireAllPermissions(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/x", RequireAdminJWT(auth),
		RequireAllPermissions(model.PermissionStudentsRead, model.PermissionAttemptsRead),
		func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name   string
		perms  []string
		status int
	}{
		{"both", []string{"students:read", "attempts:read"}, http.StatusNoContent},
		{"one missing", []string{"students:read"}, http.StatusForbidden},
		{"none", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set("Authorization", "Bearer "+adminToken(t, auth, tt.perms...))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusForbidden {
				assert.Equal(t, response.ErrPermissionDenied, errorCode(t, w))
			}
		})
	}
}

type fakeSessions struct{ err error }

func (f fakeSessions) ValidateStudentSession(context.Context, int, string) error { return f.err }

func TestCheckSingleDeviceSession(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"active", nil, http.StatusOK},
		{"replaced by newer login", service.ErrSessionInvalidated, http.StatusUnauthorized},
		{"reset", service.ErrNoSession, http.StatusUnauthorized},
		{"redis down", errors.New("dial tcp: refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/s", func(c *gin.Context) {
				c.Set(ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeStudent, UserID: 3})
			}, CheckSingleDeviceSession(fakeSessions{tt.err}), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s", nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

// ─── Rate limiting ──────────────────────────────────────────────────

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (m *memCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int64{}
	}
	m.counts[key]++
	return m.counts[key], nil
}

func TestRateLimiter(t *testing.T) {
	counter := &memCounter{}
	rl := NewRateLimiter(counter, "auth", 2, time.Minute, zerolog.Nop())
	now := time.Date(2026, 5, 1, 10, 0, 30, 0, time.UTC)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		return w
	}

	assert.Equal(t, http.StatusOK, hit().Code)
	assert.Equal(t, http.StatusOK, hit().Code)

	w := hit()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, response.ErrRateLimitExceeded, errorCode(t, w))
	assert.Equal(t, "31", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, hit().Code, "new window resets the count")
}

func TestRateLimiterFailsOpen(t *testing.T) {
	rl := NewRateLimiter(&memCounter{err: errors.New("redis down")}, "auth", 1, time.Minute, zerolog.Nop())
	r := gin.New()
	r.GET("/", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 3 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

// ─── Compression ────────────────────────────────────────────────────

func TestBrotli(t *testing.T) {
	large := strings.Repeat("prepgen ", 512)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": large}) })
	r.GET("/small", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "ok"}) })
	r.GET("/xlsx", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", []byte(large))
	})

	get := func(path, encoding string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if encoding != "" {
			req.Header.Set("Accept-Encoding", encoding)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("/large", "gzip, br;q=1.0")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.Unmarshal(plain, &body))
	assert.Equal(t, large, body["data"])

	w = get("/small", "br")
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.JSONEq(t, `{"data":"ok"}`, w.Body.String())

	w = get("/xlsx", "br")
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, large, w.Body.String())

	w = get("/large", "gzip")
	assert.Empty(t, w.Header().Get("Content-Encoding"))
}

func TestCompressible(t *testing.T) {
	assert.True(t, compressible("application/json; charset=utf-8"))
	assert.True(t, compressible("text/plain"))
	assert.False(t, compressible("image/png"))
	assert.False(t, compressible(""))
}

// ─── Caching / logging ──────────────────────────────────────────────

func TestCacheHeaders(t *testing.T) {
	r := gin.New()
	r.GET("/pub", CacheControl(time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/priv", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/zero", CacheControl(500*time.Millisecond), func(c *gin.Context) { c.Status(http.StatusOK) })

	for path, want := range map[string]string{
		"/pub":  "public, max-age=60",
		"/priv": "no-store",
		"/zero": "no-store",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Header().Get("Cache-Control"), path)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	r := gin.New()
	r.Use(response.RequestIDMiddleware(), RequestLogger(log))
	r.GET("/boom/:id", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	req := httptest.NewRequest(http.MethodGet, "/boom/7", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "/boom/:id", line["route"])
	assert.Equal(t, float64(500), line["status"])
}
