package middleware

import (
	"context"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/autoshop/backend/internal/infrastructure/telemetry"
)

var versionSegment = regexp.MustCompile(`^[vV][0-9]+$`)

// Profiling labels the profiler samples taken while a request runs with
// its method, route pattern and resource, so a flame graph can be cut per
// endpoint. Requests to skip paths run unlabelled.
func Profiling(skip ...string) gin.HandlerFunc {
	skipped := newPathSet(skip)
	return func(c *gin.Context) {
		if skipped.has(c.Request.URL.Path) {
			c.Next()
			return
		}
		telemetry.WithProfilingLabels(c.Request.Context(), profilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func profilingLabels(c *gin.Context) map[string]string {
	route := c.FullPath()
	labels := map[string]string{}
	for key, value := range map[string]string{
		telemetry.LabelMethod:    c.Request.Method,
		telemetry.LabelRoute:     route,
		telemetry.LabelOperation: resourceFromRoute(route),
	} {
		if value != "" {
			labels[key] = value
		}
	}
	return labels
}

// resourceFromRoute is the first literal segment of route once the api and
// version prefix is dropped: "/api/v1/work-orders/:id" gives "work-orders".
func resourceFromRoute(route string) string {
	for seg := range strings.SplitSeq(route, "/") {
		switch {
		case seg == "", seg == "api", versionSegment.MatchString(seg), strings.HasPrefix(seg, ":"):
			continue
		}
		return seg
	}
	return ""
}
