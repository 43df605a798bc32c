// Package text turns raw document content into the comparable forms the
// rest of the similarity index operates on: a canonical string and the
// character/word shingle sets derived from it.
package text

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes raw text: lowercases it, replaces every
// character that is not a letter, digit, or whitespace with a single
// space, collapses whitespace runs, and trims the ends.
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastWasSpace := false
	for _, r := range s {
		r = unicode.ToLower(r)

		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastWasSpace = false
		case unicode.IsSpace(r):
			if !lastWasSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastWasSpace = true
		default:
			if !lastWasSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastWasSpace = true
		}
	}

	return strings.TrimSpace(b.String())
}

// WordCount returns the number of whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
