// Package tokenizer provides the deterministic text-to-term splitting used
// by both the indexer and the query engine. It lower-cases ASCII input,
// splits on any run of non letter/digit runes, and drops short, long, and
// stop-word tokens. There is no stemming: the same surface form is required
// to match at build and query time, nothing more.
package tokenizer

import (
	"strings"
	"unicode"
)

const (
	minTokenLen = 2
	maxTokenLen = 40
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "and": {}, "or": {}, "but": {},
	"if": {}, "to": {}, "in": {}, "on": {}, "for": {}, "with": {}, "is": {},
	"are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"as": {}, "at": {}, "by": {}, "it": {}, "this": {}, "that": {},
}

// Tokenize splits text into an ordered sequence of normalized terms.
// Lowercasing is ASCII-only by design: non-ASCII letters pass through
// unchanged, so case-insensitive matching for them depends on whatever
// case the source document used.
func Tokenize(text string) []string {
	lowered := asciiLower(text)
	words := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < minTokenLen || len(w) > maxTokenLen {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

// asciiLower lower-cases only the ASCII letters in s, leaving every other
// rune (including non-ASCII letters) untouched.
func asciiLower(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	return string(out)
}
