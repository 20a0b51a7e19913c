package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	apiCSP = "default-src 'none'; frame-ancestors 'none'"

	// uploaded images are embedded by the web client on another origin
	uploadsCSP = "default-src 'none'; img-src 'self'; sandbox"

	// the docs page pulls swagger-ui from unpkg and boots it inline
	docsCSP = "default-src 'self'; base-uri 'none'; frame-ancestors 'none'; object-src 'none'; connect-src 'self'; img-src 'self' data: https:; font-src 'self' https://unpkg.com data:; style-src 'self' 'unsafe-inline' https://unpkg.com; script-src 'self' 'unsafe-inline' https://unpkg.com"
)

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		path := c.Request.URL.Path
		switch {
		case strings.HasPrefix(path, "/uploads/"):
			h.Set("Content-Security-Policy", uploadsCSP)
			h.Set("Cross-Origin-Resource-Policy", "cross-origin")
		case strings.HasPrefix(path, "/docs"):
			h.Set("Content-Security-Policy", docsCSP)
			h.Set("Cross-Origin-Resource-Policy", "same-origin")
		default:
			h.Set("Content-Security-Policy", apiCSP)
			h.Set("Cross-Origin-Resource-Policy", "same-origin")
		}

		c.Next()
	}
}
