package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joelbyler272/naturescripts-sub001/pkg/rate_limiter"
)

type RateLimitMiddlewareServicer interface {
	CheckRateLimit(ctx context.Context, identifier, policyName string) (rate_limiter.Result, error)
}

type RateLimitObserver interface {
	ObserveRateLimit(policy string, allowed bool)
	ObserveRateLimitError(policy string)
}

const (
	retryAfterHeader         = "Retry-After"
	rateLimitLimitHeader     = "X-RateLimit-Limit"
	rateLimitRemainingHeader = "X-RateLimit-Remaining"
)

// RateLimitIdentifier keys authenticated callers by user id and anonymous ones by client address.
func RateLimitIdentifier(c *gin.Context) string {
	if userID, ok := UserID(c); ok {
		return "user:" + userID
	}
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return rate_limiter.UnknownIdentifier
}

func retryAfterSeconds(res rate_limiter.Result) int64 {
	return (res.RetryAfterMs() + 999) / 1000
}

func RateLimitMiddleware(servicer RateLimitMiddlewareServicer, observer RateLimitObserver, policyName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := Logger(c)
		identifier := RateLimitIdentifier(c)

		res, err := servicer.CheckRateLimit(c.Request.Context(), identifier, policyName)
		if err != nil {
			logger.Error("rate limit check failed", "identifier", identifier, "policy", policyName, "error", err)
			observer.ObserveRateLimitError(policyName)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limiter unavailable"})
			return
		}

		observer.ObserveRateLimit(policyName, res.Allowed)
		c.Header(rateLimitLimitHeader, strconv.Itoa(res.Limit))
		c.Header(rateLimitRemainingHeader, strconv.Itoa(res.Remaining))

		if res.Allowed {
			c.Next()
			return
		}

		logger.Info("Request not allowed", "identifier", identifier, "policy", policyName, "retry_after_ms", res.RetryAfterMs())
		c.Header(retryAfterHeader, strconv.FormatInt(retryAfterSeconds(res), 10))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":          "too many requests",
			"retry_after_ms": res.RetryAfterMs(),
		})
	}
}
