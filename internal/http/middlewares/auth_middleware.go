package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/civicfix/internal/auth"
	"github.com/geocoder89/civicfix/internal/domain/user"
	"github.com/geocoder89/civicfix/internal/identity"
	"github.com/gin-gonic/gin"
)

type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthenticated", "Missing or invalid Authorization header")
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthenticated", "Invalid or expired access token")
			return
		}

		role, ok := user.ParseRole(claims.Role)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthenticated", "Invalid or expired access token")
			return
		}

		id := identity.Identity{UserID: claims.UserID, Email: claims.Email, Role: role}

		c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), id))
		c.Set(CtxUserID, id.UserID)
		c.Set(CtxRole, string(id.Role))

		c.Next()
	}
}

// bearerToken extracts the token from "Bearer <token>"; the scheme is
// case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// IdentityFrom returns the caller attached by RequireAuth.
func IdentityFrom(c *gin.Context) (identity.Identity, bool) {
	return identity.FromContext(c.Request.Context())
}
