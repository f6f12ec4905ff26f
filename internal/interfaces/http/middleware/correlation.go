// Package middleware provides HTTP middleware for the billing service and the gateway.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/autoshop/backend/internal/infrastructure/correlation"
)

// CorrelationIDKey is the gin context key holding the request's correlation id
const CorrelationIDKey = "correlation_id"

const requestIDHeader = "X-Request-ID"

// Correlation takes the correlation id from X-Correlation-ID, then
// X-Request-ID, or generates one. The id lands in the request context, the
// gin context and the response header. Run it before logger.GinMiddleware.
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := correlation.Sanitize(c.GetHeader(correlation.HeaderName))
		if id == "" {
			id = correlation.Sanitize(c.GetHeader(requestIDHeader))
		}
		ctx := correlation.WithID(c.Request.Context(), id)
		id = correlation.FromContext(ctx)

		c.Request = c.Request.WithContext(ctx)
		c.Set(CorrelationIDKey, id)
		c.Header(correlation.HeaderName, id)
		c.Next()
	}
}

// GetCorrelationID returns the id Correlation assigned to the request
func GetCorrelationID(c *gin.Context) string {
	if id := c.GetString(CorrelationIDKey); id != "" {
		return id
	}
	return correlation.FromContext(c.Request.Context())
}
