package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestResourceFromRoute(t *testing.T) {
	tests := []struct {
		route    string
		expected string
	}{
		{"/api/v1/invoices", "invoices"},
		{"/api/v1/work-orders/:id", "work-orders"},
		{"/api/v2/customers/:id/invoices", "customers"},
		{"/events/work-order-completed", "events"},
		{"/v1/invoices", "invoices"},
		{"/api/v1", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.expected, resourceFromRoute(tt.route))
		})
	}
}

func TestVersionSegment(t *testing.T) {
	assert.True(t, versionSegment.MatchString("v1"))
	assert.True(t, versionSegment.MatchString("V12"))
	assert.False(t, versionSegment.MatchString("v"))
	assert.False(t, versionSegment.MatchString("vehicles"))
	assert.False(t, versionSegment.MatchString("api"))
}

func TestProfiling_PassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, mw := range []gin.HandlerFunc{Profiling(ProbePaths...), Profiling()} {
		r := gin.New()
		r.Use(mw)
		called := 0
		r.GET("/api/v1/invoices/:id", func(c *gin.Context) {
			called++
			c.Status(http.StatusOK)
		})
		r.GET("/healthz", func(c *gin.Context) {
			called++
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/1", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 2, called)
	}
}

func TestProfilingLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var labels map[string]string
	r.GET("/api/v1/parts/:id", func(c *gin.Context) {
		labels = profilingLabels(c)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/parts/9", nil))

	assert.Equal(t, map[string]string{
		"method":    "GET",
		"route":     "/api/v1/parts/:id",
		"operation": "parts",
	}, labels)
}
