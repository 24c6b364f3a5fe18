package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/leadgate/leadgate/internal/config"
)

// RateLimitMiddleware applies a per-client-IP token bucket. Limiters are
// created lazily and never expire; the key space is bounded by the client
// population.
func RateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	var limiters sync.Map

	return func(c *gin.Context) {
		key := c.ClientIP()
		v, ok := limiters.Load(key)
		if !ok {
			v, _ = limiters.LoadOrStore(key, rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst))
		}
		limiter := v.(*rate.Limiter)

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
