package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader          = "X-Request-ID"
	RequestIDContextValueKey = "requestID"
)

// RequestIDMiddleware propagates the caller's request id or generates one.
func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	c.Set(RequestIDContextValueKey, requestID)
	c.Header(RequestIDHeader, requestID)
	c.Next()
}

// Logger returns the default logger enriched with the request id.
func Logger(c *gin.Context) *slog.Logger {
	return slog.With("request_id", c.GetString(RequestIDContextValueKey))
}
