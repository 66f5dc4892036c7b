// Package text normalizes visitor messages and scores how alike two texts are.
package text

import (
	"strings"
	"unicode"
)

// Normalize lowercases s, removes punctuation and collapses runs of
// whitespace to a single space. Letters, digits and underscores survive.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tokens returns the normalized words of s in order, duplicates included.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// TokenSet returns the distinct normalized words of s.
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range Tokens(s) {
		set[w] = struct{}{}
	}
	return set
}

// Similarity is the Jaccard index of the token sets of a and b. It is 0
// when either text has no words.
func Similarity(a, b string) float64 {
	return Jaccard(TokenSet(a), TokenSet(b))
}

// Jaccard returns |a∩b| / |a∪b|, or 0 when either set is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for w := range small {
		if _, ok := large[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
