package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ProbePaths are polled by the orchestrator and the sidecar. They get no
// spans and no profiling labels.
var ProbePaths = []string{"/healthz", "/dapr/subscribe"}

type pathSet map[string]struct{}

func newPathSet(paths []string) pathSet {
	s := make(pathSet, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

func (s pathSet) has(path string) bool {
	_, ok := s[path]
	return ok
}

// Tracing starts a server span per request through otelgin, which extracts
// the caller's trace context and names the span after the route pattern.
// Requests to skip paths are not traced.
func Tracing(service string, skip ...string) gin.HandlerFunc {
	skipped := newPathSet(skip)
	return otelgin.Middleware(service, otelgin.WithFilter(func(r *http.Request) bool {
		return !skipped.has(r.URL.Path)
	}))
}

// SpanAttributes tags the active span with the correlation id and marks it
// failed on a 5xx answer. It runs after Correlation and Tracing.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		if id := GetCorrelationID(c); id != "" {
			span.SetAttributes(attribute.String("correlation_id", id))
		}
		c.Next()
		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
