package studio

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeInstruction composes the text to NFC and turns control characters
// into spaces so the refine input stays a single line.
func NormalizeInstruction(s string) string {
	t := transform.Chain(norm.NFC, runes.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}))
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	return strings.TrimSpace(result)
}
