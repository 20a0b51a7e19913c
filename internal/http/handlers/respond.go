package handlers

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/civicfix/internal/apperr"
	"github.com/geocoder89/civicfix/internal/observability"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

// RespondData writes the success envelope.
func RespondData(ctx *gin.Context, status int, data any) {
	ctx.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func RespondMessage(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{
		"success": true,
		"message": message,
	})
}

func RespondError(ctx *gin.Context, status int, code, message string, details any) {
	ctx.JSON(status, gin.H{
		"success": false,
		"message": message,
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details any) {
	RespondError(ctx, http.StatusBadRequest, string(apperr.KindValidation), message, details)
}

// RespondInternal writes a 500. message must already be safe to show.
func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, string(apperr.KindInternal), message, nil)
}

// RespondAppError renders a service error. Server errors are logged and
// reported with their cause; clients only see the generic message.
func RespondAppError(ctx *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	if kind == apperr.KindInternal {
		reqID := requestIDFrom(ctx)
		slog.Default().ErrorContext(ctx.Request.Context(), "request failed",
			"err", err, "route", ctx.FullPath(), "request_id", reqID)
		observability.CaptureError(ctx.Request.Context(), err, map[string]string{
			"route":      ctx.FullPath(),
			"request_id": reqID,
		})
		RespondInternal(ctx, apperr.MessageOf(err))
		return
	}

	RespondError(ctx, status, string(kind), apperr.MessageOf(err), nil)
}
