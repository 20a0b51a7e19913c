package middlewares

import (
	"net/http"
	"slices"

	"github.com/geocoder89/civicfix/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(allowed ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthenticated", "Missing identity context")
			return
		}
		if !slices.Contains(allowed, id.Role) {
			abort(c, http.StatusForbidden, "forbidden", "Insufficient role")
			return
		}
		c.Next()
	}
}
