package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SwaggerConfig guards the API documentation endpoint
type SwaggerConfig struct {
	Enabled bool
	// AllowedIPs holds addresses or CIDR ranges. Empty allows every client.
	AllowedIPs []string
}

// ipAllowlist matches client addresses against single IPs and ranges
type ipAllowlist struct {
	ips  []net.IP
	nets []*net.IPNet
}

func newIPAllowlist(entries []string) ipAllowlist {
	var l ipAllowlist
	for _, e := range entries {
		if strings.Contains(e, "/") {
			if _, n, err := net.ParseCIDR(e); err == nil {
				l.nets = append(l.nets, n)
			}
			continue
		}
		if ip := net.ParseIP(e); ip != nil {
			l.ips = append(l.ips, ip)
		}
	}
	return l
}

func (l ipAllowlist) allows(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, a := range l.ips {
		if a.Equal(ip) {
			return true
		}
	}
	for _, n := range l.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// SwaggerProtection answers 404 while the docs are disabled and 403 to
// clients outside the allowlist. Unparseable allowlist entries are skipped;
// configuration validation reports them at startup.
func SwaggerProtection(cfg SwaggerConfig) gin.HandlerFunc {
	allowlist := newIPAllowlist(cfg.AllowedIPs)
	restricted := len(cfg.AllowedIPs) > 0

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "API documentation is not available",
			})
			return
		}
		if restricted && !allowlist.allows(net.ParseIP(c.ClientIP())) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Access to API documentation is restricted",
			})
			return
		}
		c.Next()
	}
}
