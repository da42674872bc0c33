package sanitize

import (
	"regexp"
	"unicode/utf8"
)

// Plain email (case-insensitive)
var reEmail = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)

// Common phone shapes: +233..., (030) 123-4567, 024..., etc.
// Only digits, spaces, dashes, dots, parentheses and a leading plus; at least 9 digits.
var rePhone = regexp.MustCompile(`\+?\d[\d\s\-\.\(\)]{7,}\d`)

func RedactPII(s string) string {
	if s == "" {
		return s
	}
	s = reEmail.ReplaceAllString(s, "[redacted email]")
	s = rePhone.ReplaceAllString(s, "[redacted phone]")
	return s
}

// Summary cuts a listing preview at a word boundary, or at the last whole
// rune within max bytes when the text has no space to cut at.
func Summary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && s[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
		for i > 0 && !utf8.RuneStart(s[i]) {
			i--
		}
	}
	return s[:i] + "…"
}

// Preview redacts contact details and trims to max bytes.
func Preview(s string, max int) string {
	return Summary(RedactPII(s), max)
}
