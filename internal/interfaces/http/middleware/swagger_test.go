package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestSwaggerProtection(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name       string
		cfg        SwaggerConfig
		remoteAddr string
		want       int
	}{
		{"disabled", SwaggerConfig{}, "10.0.0.5:4000", http.StatusNotFound},
		{"open", SwaggerConfig{Enabled: true}, "203.0.113.9:4000", http.StatusOK},
		{"exact ip", SwaggerConfig{Enabled: true, AllowedIPs: []string{"192.168.1.7"}}, "192.168.1.7:4000", http.StatusOK},
		{"cidr range", SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.0/8"}}, "10.20.30.40:4000", http.StatusOK},
		{"outside allowlist", SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.0/8"}}, "172.16.0.1:4000", http.StatusForbidden},
		{"only bad entries", SwaggerConfig{Enabled: true, AllowedIPs: []string{"not-an-ip"}}, "10.0.0.5:4000", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/swagger/*any", SwaggerProtection(tt.cfg), func(c *gin.Context) {
				c.String(http.StatusOK, "docs")
			})

			req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
			req.RemoteAddr = tt.remoteAddr
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestIPAllowlist(t *testing.T) {
	l := newIPAllowlist([]string{"192.168.1.7", "10.0.0.0/8", "2001:db8::/32", "garbage"})

	assert.True(t, l.allows(net.ParseIP("192.168.1.7")))
	assert.True(t, l.allows(net.ParseIP("10.255.0.1")))
	assert.True(t, l.allows(net.ParseIP("2001:db8::1")))
	assert.False(t, l.allows(net.ParseIP("192.168.1.8")))
	assert.False(t, l.allows(nil))
}
