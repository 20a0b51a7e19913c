package security

import (
	"strings"
	"unicode"
)

// Sanitizer normalises user supplied free text before it is stored. Text is
// kept as the client sent it, markup included: every response is JSON, and
// the encoder escapes it there. Only what a store would reject is removed.
type Sanitizer struct{}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// Text repairs invalid UTF-8, drops control characters other than tab and
// newline (Postgres refuses NUL in text columns) and trims surrounding space.
func (s *Sanitizer) Text(in string) string {
	if in == "" {
		return ""
	}
	out := strings.ToValidUTF8(in, "\uFFFD")
	out = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, out)
	return strings.TrimSpace(out)
}
