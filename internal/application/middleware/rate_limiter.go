package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	Rate   int           // requests per period
	Burst  int           // maximum burst size
	Period time.Duration // defaults to one second
}

func (c RateLimitConfig) limit() redis_rate.Limit {
	period := c.Period
	if period <= 0 {
		period = time.Second
	}
	burst := c.Burst
	if burst <= 0 {
		burst = c.Rate
	}
	return redis_rate.Limit{Rate: c.Rate, Burst: burst, Period: period}
}

// PerMinute allows n requests a minute with a burst of n
func PerMinute(n int) RateLimitConfig {
	return RateLimitConfig{Rate: n, Burst: n, Period: time.Minute}
}

// RateLimiter manages rate limiting using Redis. A limiter without a Redis
// client lets every request through.
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	logger   *zap.Logger
	failOpen bool // if true, allow requests when Redis is unavailable
	prefix   string
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redisClient *redis.Client, failOpen bool, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &RateLimiter{
		logger:   logger,
		failOpen: failOpen,
		prefix:   "gdxpay:ratelimit:",
	}
	if redisClient != nil {
		r.limiter = redis_rate.NewLimiter(redisClient)
	}
	return r
}

// Enabled reports whether requests are actually limited
func (r *RateLimiter) Enabled() bool {
	return r.limiter != nil
}

// Middleware returns a Gin middleware for rate limiting
func (r *RateLimiter) Middleware(keyFunc func(*gin.Context) string, config RateLimitConfig) gin.HandlerFunc {
	limit := config.limit()
	return func(c *gin.Context) {
		if r.limiter == nil {
			c.Next()
			return
		}
		key := keyFunc(c)
		if key == "" {
			c.Next()
			return
		}

		res, err := r.limiter.Allow(c.Request.Context(), r.prefix+key, limit)
		if err != nil {
			r.logger.Error("rate limiter error", zap.Error(err))
			if r.failOpen {
				// Fail open - allow the request but log it
				c.Next()
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "SERVICE_UNAVAILABLE",
				"message": "Rate limiting unavailable",
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit.Rate))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(res.ResetAfter).Unix()))

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds()) + 1
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "RATE_LIMIT_EXCEEDED",
				"message":     "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// ByIP limits requests by client IP address
func ByIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByIPAndEndpoint limits requests by IP and route combination
func ByIPAndEndpoint(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return fmt.Sprintf("ip:%s:endpoint:%s", c.ClientIP(), path)
}

// PurchaseConfig limits purchase flows, which each open the store UI
var PurchaseConfig = RateLimitConfig{
	Rate:   10,
	Burst:  3,
	Period: time.Minute,
}
