package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const hstsValue = "max-age=15552000; includeSubDomains"

// NoStoreHeaders hardens admin API responses, which carry user messages and
// display names: they must not be cached, framed, or sniffed. HSTS is only
// sent when the request arrived over HTTPS, directly or via the proxy.
func NoStoreHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		h.Set("Pragma", "no-cache")
		if isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hstsValue)
		}
		c.Next()
	}
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
