package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/prepgen-backend/internal/config"
	"github.com/stemsi/prepgen-backend/internal/response"
)

// Counter increments a key that expires after ttl and returns the new count.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisCounter is a Counter shared by every server instance.
type RedisCounter struct {
	Client *redis.Client
}

// Incr runs INCR and EXPIRE in one round trip.
func (r RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := r.Client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimiter is a fixed-window per-IP limiter.
type RateLimiter struct {
	counter Counter
	scope   string
	limit   int
	window  time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

// NewRateLimiter allows limit requests per window from one IP within scope.
func NewRateLimiter(counter Counter, scope string, limit int, window time.Duration, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		counter: counter,
		scope:   scope,
		limit:   limit,
		window:  window,
		log:     log.With().Str("component", "rate_limiter").Str("scope", scope).Logger(),
		now:     time.Now,
	}
}

// Middleware returns a Gin middleware that rate-limits requests by IP.
// Counter failures let the request through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		now := rl.now()
		window := now.Truncate(rl.window)
		key := config.CacheKey.RateLimitKey(rl.scope, c.ClientIP(), window.Unix())

		count, err := rl.counter.Incr(c.Request.Context(), key, rl.window)
		if err != nil {
			rl.log.Warn().Err(err).Msg("Rate limit counter unavailable, allowing request")
			c.Next()
			return
		}

		remaining := int64(rl.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rl.limit) {
			retry := window.Add(rl.window).Sub(now)
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}
