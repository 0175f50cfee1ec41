package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"poll-service/internal/services"
)

type RateLimitMiddleware struct {
	redisService *services.RedisService
}

func NewRateLimitMiddleware(redisService *services.RedisService) *RateLimitMiddleware {
	return &RateLimitMiddleware{redisService: redisService}
}

// RateLimit limits authenticated mutating requests per caller and
// endpoint within a sliding window.
func (rm *RateLimitMiddleware) RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CallerFromContext(c.Request.Context())
		if caller == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user credentials", "code": "unauthorized"})
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%s", caller.ID, c.Request.URL.Path)
		allowed, err := rm.redisService.CheckRateLimit(c.Request.Context(), key, requests, window)
		if err != nil {
			// A broken limiter must not take the API down with it.
			c.Next()
			return
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("too many requests, limit is %d per %v", requests, window),
				"code":  "rate_limited",
			})
			return
		}

		c.Next()
	}
}

// RateLimitIP limits public requests per client IP and endpoint.
func (rm *RateLimitMiddleware) RateLimitIP(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit_ip:%s:%s", c.ClientIP(), c.Request.URL.Path)
		allowed, err := rm.redisService.CheckRateLimit(c.Request.Context(), key, requests, window)
		if err != nil {
			c.Next()
			return
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("too many requests, limit is %d per %v", requests, window),
				"code":  "rate_limited",
			})
			return
		}

		c.Next()
	}
}
