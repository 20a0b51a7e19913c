package security

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "secret1" {
		t.Fatalf("expected hash to differ from plaintext")
	}

	if err := h.Compare(hash, "secret1"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := h.Compare(hash, "secret2"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if err := h.Compare("not-a-hash", "secret1"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch for malformed hash, got %v", err)
	}
}

func TestNewBcryptHasherClampsCost(t *testing.T) {
	if h := NewBcryptHasher(0); h.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", h.cost)
	}
}

func TestSanitizerText(t *testing.T) {
	s := NewSanitizer()

	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Pothole on Main St", "Pothole on Main St"},
		{"Main St & 3rd Ave", "Main St & 3rd Ave"},
		{"depth a<b and c", "depth a<b and c"},
		{"Pothole <near> school", "Pothole <near> school"},
		// entities stay entities; nothing is decoded into markup
		{"&lt;script&gt;alert(1)&lt;/script&gt;", "&lt;script&gt;alert(1)&lt;/script&gt;"},
		{"<b>Broken</b> light", "<b>Broken</b> light"},
		{"line one\nline two\tend", "line one\nline two\tend"},
		{"nul\x00byte\r", "nulbyte"},
		{"bad \xff utf8", "bad \uFFFD utf8"},
		{"  padded  ", "padded"},
	}

	for _, tc := range cases {
		if got := s.Text(tc.in); got != tc.want {
			t.Fatalf("Text(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
