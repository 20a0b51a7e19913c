package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func RequireJSON() gin.HandlerFunc {
	return RequireContentType("application/json")
}

// RequireContentType rejects bodies of any other media type on POST, PUT
// and PATCH.
func RequireContentType(types ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			ct := strings.ToLower(c.GetHeader("Content-Type"))
			for _, t := range types {
				// allow "application/json; charset=utf-8"
				if ct != "" && strings.HasPrefix(ct, t) {
					c.Next()
					return
				}
			}
			abort(c, http.StatusUnsupportedMediaType, "unsupported_media_type",
				"Content-Type must be "+strings.Join(types, " or "))
			return
		}
		c.Next()
	}
}
