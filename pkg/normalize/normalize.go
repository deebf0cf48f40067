// Package normalize canonicalizes names so that repository entries and search
// criteria can be compared regardless of case, accents, or punctuation.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the canonical comparable form of s:
//   - lower case
//   - diacritics removed ("é" -> "e")
//   - every run of characters that are neither letters nor digits collapsed
//     to a single space, with no leading or trailing space
//
// Normalize is idempotent.
func Normalize(s string) string {
	// A chained transformer keeps state between calls, build one per call.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(stripMarks, strings.ToLower(s))
	if err != nil {
		// Only reachable on invalid input handling inside x/text; keep the
		// lower-cased text rather than failing a search.
		folded = strings.ToLower(s)
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Contains reports whether the normalized form of candidate contains the
// normalized form of criterion. An empty criterion matches everything.
func Contains(candidate, criterion string) bool {
	return strings.Contains(Normalize(candidate), Normalize(criterion))
}
