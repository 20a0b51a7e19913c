package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes caps request bodies. Multipart uploads get their own, larger
// allowance since they carry the images.
func MaxBodyBytes(jsonMax, multipartMax int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		limit := jsonMax
		if strings.HasPrefix(strings.ToLower(ctx.GetHeader("Content-Type")), "multipart/") {
			limit = multipartMax
		}

		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit)

		ctx.Next()
	}
}
