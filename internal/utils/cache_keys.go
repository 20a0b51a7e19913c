package utils

import (
	"strings"
)

func BuildSuggestionCacheKey(ownerID, q string) string {
	scope := ownerID
	if scope == "" {
		scope = "all"
	}

	return "defects:suggest:v1:scope=" + scope +
		":q=" + strings.ToLower(strings.TrimSpace(q))
}
