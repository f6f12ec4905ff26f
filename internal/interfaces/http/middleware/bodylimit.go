package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autoshop/backend/internal/interfaces/http/dto"
)

// BodyLimit caps request bodies at limit bytes; zero or less turns it off.
// A declared Content-Length over the limit is answered 413 before the
// handler runs. A body without one is cut off by http.MaxBytesReader, and
// the handler sees a read error.
func BodyLimit(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			body := dto.NewErrorResponseWithRequestID(dto.ErrCodeRequestTooLarge,
				"Request body exceeds maximum allowed size", GetCorrelationID(c))
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, body)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
