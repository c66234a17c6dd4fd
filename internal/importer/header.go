package importer

import (
	"strings"
)

// NormalizeHeader canonicalizes raw header text into a comparable token:
// strip a leading BOM, trim, lower-case, drop bracketed annotations like
// "(kg)", strip everything outside [a-z0-9 ] and collapse whitespace runs.
// The transform is idempotent; matching downstream is plain substring
// containment, never edit distance.
func NormalizeHeader(raw string) string {
	s := strings.TrimPrefix(raw, "\uFEFF")
	s = strings.ToLower(strings.TrimSpace(s))
	s = stripBrackets(s)

	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ', c == '\t':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// stripBrackets removes (...) and [...] annotations, unterminated brackets
// swallow to end of string.
func stripBrackets(s string) string {
	var b strings.Builder
	depth := 0
	for _, c := range s {
		switch c {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(c)
			}
		}
	}
	return b.String()
}
