package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/staylens/internal/metrics"
	"golang.org/x/time/rate"
)

// RateLimit admits requests through a shared token bucket. Rejected requests
// are handed to onLimit, which must write the response.
func RateLimit(limiter *rate.Limiter, m *metrics.Metrics, onLimit gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limiter.Allow() {
			c.Next()
			return
		}

		if m != nil {
			m.RateLimited.Inc()
		}
		onLimit(c)
		c.Abort()
	}
}

// NewLimiter builds a limiter from requests per second and burst size.
// A non-positive rps disables limiting.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
