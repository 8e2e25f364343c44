package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zvonchat/zvon/config"
	"github.com/zvonchat/zvon/pkg/ratelimit"
)

// RateLimitMiddleware throttles requests per client IP using the redis-backed
// limiter. The limiter fails open, so a redis outage degrades to unlimited
// rather than refusing traffic.
func RateLimitMiddleware(limiter ratelimit.Limiter, cfg *config.RateLimitConfig) gin.HandlerFunc {
	window := time.Duration(cfg.WindowSeconds) * time.Second

	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), "ip:"+c.ClientIP(), cfg.RequestsPerIP, window)
		if err == nil && !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
