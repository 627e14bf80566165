// Package textnorm canonicalizes free text (queries, titles) into a comparable
// token form and computes lexical overlap between two texts.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases text, folds it to ASCII, deletes apostrophes, turns the
// remaining punctuation into spaces and collapses whitespace.
//
// The result only contains characters in [a-z0-9 ] and Normalize is idempotent.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = toASCII(text)
	text = strings.ReplaceAll(text, "'", "")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			// Punctuation, symbols, whitespace and control characters all
			// become a separator.
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// toASCII decomposes text (NFD) and drops every non-ASCII rune, so "café"
// becomes "cafe".
func toASCII(text string) string {
	decomposed := norm.NFD.String(text)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r < unicode.MaxASCII+1 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Words returns the normalized word sequence of text.
func Words(text string) []string {
	return strings.Fields(Normalize(text))
}
