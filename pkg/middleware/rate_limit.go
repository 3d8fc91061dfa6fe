package middleware

import (
	"net/http"
	"strconv"

	"trackfetch/internal/model"
	"trackfetch/internal/service"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware rejects clients that exceed their per-IP token bucket
func RateLimitMiddleware(rateLimitService *service.RateLimitService) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining := rateLimitService.Allow(c.ClientIP())

		if remaining >= 0 {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.ErrorResponse{
				Error:   "rate_limit_exceeded",
				Message: "Too many requests. Please try again later.",
				Code:    http.StatusTooManyRequests,
			})
			return
		}

		c.Next()
	}
}
