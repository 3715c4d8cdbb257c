package httpmiddleware

import (
	"net/http"
	"time"

	"mnemochat/internal/config"
	"mnemochat/pkg/circuitbreaker"
	"mnemochat/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
)

// RateLimit is a gin middleware that applies rate limiting to all requests.
func RateLimit(limiter ratelimiter.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// CircuitBreak is a gin middleware that applies the circuit breaker pattern.
// HTTP status codes >= 500 count as failures.
func CircuitBreak(breaker circuitbreaker.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, err := breaker.Execute(func() (interface{}, error) {
			c.Next()
			if c.Writer.Status() >= http.StatusInternalServerError {
				return nil, errServerError{status: c.Writer.Status()}
			}
			return nil, nil
		})

		if err == circuitbreaker.ErrCircuitOpen {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
		}
		// Any other error was already written to the response by the handler.
	}
}

type errServerError struct {
	status int
}

func (e errServerError) Error() string {
	return http.StatusText(e.status)
}

// FromConfig assembles the middleware chain declared in the configuration.
// Disabled middlewares are simply omitted.
func FromConfig(cfg config.MiddlewareConfig) []gin.HandlerFunc {
	var chain []gin.HandlerFunc

	if cfg.RateLimiter.Enabled {
		var limiter ratelimiter.RateLimiter
		switch cfg.RateLimiter.Algorithm {
		case "fixedWindow":
			window, err := time.ParseDuration(cfg.RateLimiter.FixedWindow.Window)
			if err != nil || window <= 0 {
				window = time.Minute
			}
			limiter = ratelimiter.NewFixedWindowCounter(cfg.RateLimiter.FixedWindow.Limit, window)
		default:
			limiter = ratelimiter.NewTokenBucket(cfg.RateLimiter.TokenBucket.Rate, cfg.RateLimiter.TokenBucket.Capacity)
		}
		chain = append(chain, RateLimit(limiter))
	}

	if cfg.CircuitBreaker.Enabled {
		timeout, err := time.ParseDuration(cfg.CircuitBreaker.Timeout)
		if err != nil || timeout <= 0 {
			timeout = 30 * time.Second
		}
		breaker := circuitbreaker.New(cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.SuccessThreshold, timeout)
		chain = append(chain, CircuitBreak(breaker))
	}

	return chain
}
