// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query turns paper titles into exact-match search queries.
package query

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultProtectedTerms are model names whose internal hyphens must survive
// normalization.
var DefaultProtectedTerms = []string{"GPT-3", "BERT", "T5", "XL-Net"}

// structural is the punctuation replaced by a space.
const structural = `:()[]{}/\`

// Normalizer builds search queries. The zero value protects no terms.
type Normalizer struct {
	terms []string
}

// NewNormalizer returns a Normalizer protecting terms. Empty terms are
// ignored; longer terms take precedence over their prefixes.
func NewNormalizer(terms []string) *Normalizer {
	var kept []string
	seen := make(map[string]bool)
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		kept = append(kept, t)
	}
	sort.SliceStable(kept, func(i, j int) bool { return len(kept[i]) > len(kept[j]) })
	return &Normalizer{terms: kept}
}

// Normalize returns title as a double-quoted, whitespace-collapsed query.
// Protected terms are copied verbatim; elsewhere structural punctuation and
// hyphens become spaces. A title already wrapped in double quotes is
// unwrapped first, so Normalize is idempotent.
func (n *Normalizer) Normalize(title string) string {
	title = unquote(strings.TrimSpace(title))

	var b strings.Builder
	b.Grow(len(title))
	for i := 0; i < len(title); {
		if term := n.termAt(title, i); term != "" {
			b.WriteString(term)
			i += len(term)
			continue
		}
		c := title[i]
		if c == '-' || strings.IndexByte(structural, c) >= 0 {
			b.WriteByte(' ')
		} else {
			b.WriteByte(c)
		}
		i++
	}
	return `"` + strings.Join(strings.Fields(b.String()), " ") + `"`
}

// termAt returns the longest protected term starting at s[i], or "". A
// term only matches as a whole word: "XL-Net" inside "MXL-Network" does not.
func (n *Normalizer) termAt(s string, i int) string {
	if i > 0 {
		if r, _ := utf8.DecodeLastRuneInString(s[:i]); isWordRune(r) {
			return ""
		}
	}
	for _, t := range n.terms {
		if !strings.HasPrefix(s[i:], t) {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(s[i+len(t):]); isWordRune(r) {
			continue
		}
		return t
	}
	return ""
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
