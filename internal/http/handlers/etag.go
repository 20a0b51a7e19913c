package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"maps"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RespondDataWithETag writes the success envelope for data (plus any paging
// fields in meta) and answers 304 when If-None-Match already names it.
// Defect views differ per caller, so shared caches must revalidate.
func RespondDataWithETag(ctx *gin.Context, data any, meta gin.H) {
	body := gin.H{"success": true, "data": data}
	maps.Copy(body, meta)

	ctx.Header("Cache-Control", "private, no-cache")

	tag, err := etagOf(body)
	if err != nil {
		ctx.JSON(http.StatusOK, body)
		return
	}
	ctx.Header("ETag", tag)

	if matchesETag(ctx.GetHeader("If-None-Match"), tag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.JSON(http.StatusOK, body)
}

func etagOf(body any) (string, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return `"` + hex.EncodeToString(sum[:16]) + `"`, nil
}

// matchesETag uses weak comparison: W/"x" matches "x".
func matchesETag(header, tag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == tag {
			return true
		}
	}
	return false
}
