package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEN_MAX_RELAXATION_PASSES", "")
	t.Setenv("QUALIFIED_THRESHOLD", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 3, cfg.MaxRelaxationPasses)
	assert.False(t, cfg.IncludeUnverified)
	assert.Equal(t, 60.0, cfg.QualifiedThreshold)
	assert.Equal(t, 40.0, cfg.BorderlineThreshold)
	assert.Equal(t, 30*time.Second, cfg.ExpiryInterval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEN_MAX_RELAXATION_PASSES", "1")
	t.Setenv("GEN_INCLUDE_UNVERIFIED", "true")
	t.Setenv("QUALIFIED_THRESHOLD", "75.5")
	t.Setenv("JWT_EXPIRY_HOURS", "2")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()
	assert.Equal(t, 1, cfg.MaxRelaxationPasses)
	assert.True(t, cfg.IncludeUnverified)
	assert.Equal(t, 75.5, cfg.QualifiedThreshold)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("MAX_DB_CONNS", "lots")
	t.Setenv("BORDERLINE_THRESHOLD", "forty")
	t.Setenv("GEN_INCLUDE_UNVERIFIED", "maybe")

	cfg := Load()
	assert.Equal(t, int32(16), cfg.MaxDBConns)
	assert.Equal(t, 40.0, cfg.BorderlineThreshold)
	assert.False(t, cfg.IncludeUnverified)
}

func TestLocation(t *testing.T) {
	cfg := &Config{Timezone: "Asia/Kolkata"}
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())

	cfg.Timezone = "Nowhere/Special"
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "login:7", CacheKey.StudentSessionKey(7))
	assert.Equal(t, "attempt:abc:answers", CacheKey.AttemptAnswersKey("abc"))
	assert.Equal(t, "ratelimit:auth:1.2.3.4:99", CacheKey.RateLimitKey("auth", "1.2.3.4", 99))
}
