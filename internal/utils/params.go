package utils

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// QueryInt parses a positive integer query value, falling back when it is
// missing or malformed.
func QueryInt(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
