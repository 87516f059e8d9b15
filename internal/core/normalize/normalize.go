// Package normalize defines the label normalization contract used by alias
// matching and hint addressing: NFKD fold, diacritic strip, lowercase,
// whitespace and punctuation collapsed to single spaces. Matching stays
// reproducible only if every caller goes through this one function.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldDiacritics = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Label canonicalizes a free-text portal label or type alias.
func Label(s string) string {
	folded, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.':
			b.WriteRune(r)
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Contains reports whether needle appears in haystack after both sides are
// normalized. Empty needles never match.
func Contains(haystack, needle string) bool {
	n := Label(needle)
	if n == "" {
		return false
	}
	return strings.Contains(Label(haystack), n)
}
