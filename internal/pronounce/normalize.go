package pronounce

import (
	"strings"
	"unicode"
)

// Normalize prepares text for comparison.
//
// For [Latin] and [Other] text it lowercases, strips punctuation and collapses
// runs of whitespace to a single space. For [CJK] text it strips punctuation,
// including full-width variants, and removes all whitespace so comparison
// happens character by character.
func Normalize(text string, family ScriptFamily) string {
	var b strings.Builder
	b.Grow(len(text))

	pendingSpace := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			continue
		case unicode.IsSpace(r):
			if family != CJK && b.Len() > 0 {
				pendingSpace = true
			}
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
