package middlewares

import (
	"github.com/gin-gonic/gin"
)

// abort writes the same failure envelope the handlers use.
func abort(c *gin.Context, status int, code, message string) {
	reqID, _ := c.Get(CtxRequestID)
	id, _ := reqID.(string)

	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
		"error": gin.H{
			"code":      code,
			"message":   message,
			"requestId": id,
		},
	})
}
