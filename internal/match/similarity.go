// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import (
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// tagPattern matches bracketed annotations such as [PDF], [HTML] or
// [BOOK][B] that prefix result titles.
var tagPattern = regexp.MustCompile(`\[[^\]]*\]`)

// StripTags removes bracketed tokens and surrounding whitespace.
func StripTags(s string) string {
	return strings.Join(strings.Fields(tagPattern.ReplaceAllString(s, " ")), " ")
}

// Similarity returns the case-insensitive sequence-matching ratio of a and b
// in [0, 1]: twice the number of matched characters divided by the total
// length of both strings. Two empty strings are identical.
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return m.Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
