package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// CacheControl lets browsers and shared caches reuse a response for maxAge.
// Durations under a second disable caching.
func CacheControl(maxAge time.Duration) gin.HandlerFunc {
	secs := int(maxAge / time.Second)
	if secs <= 0 {
		return NoStore()
	}
	return cacheHeader("public, max-age=" + strconv.Itoa(secs))
}

// NoStore forbids caching of per-student responses such as papers and results.
func NoStore() gin.HandlerFunc {
	return cacheHeader("no-store")
}

func cacheHeader(value string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}
