// Package snippet implements the highlighted-text-window extractor
// described by spec component 4.H: find the first whole-token occurrence
// of any query term, carve a window of up to 240 characters around it
// snapped to word boundaries, escape HTML metacharacters, then wrap each
// matched token in <em>.
package snippet

import (
	"strings"
	"unicode"
)

const (
	windowMax  = 240
	windowHalf = windowMax / 2
)

var htmlEscaper = strings.NewReplacer(
	`&`, "&amp;",
	`<`, "&lt;",
	`>`, "&gt;",
	`"`, "&quot;",
)

type tokenSpan struct {
	start, end int
	lower      string
}

// Extract returns an HTML-safe snippet of text highlighting occurrences of
// queryTerms (already tokenized and lowercased, e.g. via tokenizer.Tokenize).
func Extract(text string, queryTerms []string) string {
	if text == "" {
		return ""
	}
	spans := scanTokens(text)
	querySet := make(map[string]bool, len(queryTerms))
	for _, t := range queryTerms {
		querySet[t] = true
	}

	matchIdx := -1
	for i, sp := range spans {
		if querySet[sp.lower] {
			matchIdx = i
			break
		}
	}

	if matchIdx < 0 {
		we := windowMax
		if we > len(text) {
			we = len(text)
		}
		_, we = snapToWordBoundaries(0, we, spans, len(text))
		return buildWindow(text, 0, we, spans, querySet)
	}

	center := spans[matchIdx].start
	ws := center - windowHalf
	we := center + windowHalf
	if ws < 0 {
		we += -ws
		ws = 0
	}
	if we > len(text) {
		ws -= we - len(text)
		we = len(text)
		if ws < 0 {
			ws = 0
		}
	}
	ws, we = snapToWordBoundaries(ws, we, spans, len(text))
	return buildWindow(text, ws, we, spans, querySet)
}

// scanTokens splits text the same way the tokenizer splits words — runs of
// Unicode letters/digits, apostrophes and punctuation act as separators —
// but keeps every token (no length or stop-word filtering) so the snippet
// extractor can locate whole-word matches and snap window edges cleanly.
func scanTokens(text string) []tokenSpan {
	var spans []tokenSpan
	var fold strings.Builder
	inToken := false
	start := 0
	for i, r := range text {
		isWord := isWordRune(r)
		if isWord {
			if !inToken {
				start = i
				inToken = true
				fold.Reset()
			}
			fold.WriteRune(foldRune(r))
		} else if inToken {
			spans = append(spans, tokenSpan{start: start, end: i, lower: fold.String()})
			inToken = false
		}
	}
	if inToken {
		spans = append(spans, tokenSpan{start: start, end: len(text), lower: fold.String()})
	}
	return spans
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func foldRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r - 'A' + 'a'
	}
	return r
}

// snapToWordBoundaries extends [start, end) outward so it never splits a
// token in half.
func snapToWordBoundaries(start, end int, spans []tokenSpan, textLen int) (int, int) {
	for _, sp := range spans {
		if sp.start < start && sp.end > start {
			start = sp.start
		}
		if sp.start < end && sp.end > end {
			end = sp.end
		}
	}
	if start < 0 {
		start = 0
	}
	if end > textLen {
		end = textLen
	}
	return start, end
}

// buildWindow renders text[start:end] as HTML-safe output, wrapping every
// token whose folded form is in querySet with <em>.
func buildWindow(text string, start, end int, spans []tokenSpan, querySet map[string]bool) string {
	var sb strings.Builder
	if start > 0 {
		sb.WriteString("…")
	}
	pos := start
	for _, sp := range spans {
		if sp.end <= start || sp.start >= end {
			continue
		}
		if sp.start > pos {
			sb.WriteString(htmlEscaper.Replace(text[pos:sp.start]))
		}
		token := text[sp.start:sp.end]
		if querySet[sp.lower] {
			sb.WriteString("<em>")
			sb.WriteString(htmlEscaper.Replace(token))
			sb.WriteString("</em>")
		} else {
			sb.WriteString(htmlEscaper.Replace(token))
		}
		pos = sp.end
	}
	if pos < end {
		sb.WriteString(htmlEscaper.Replace(text[pos:end]))
	}
	if end < len(text) {
		sb.WriteString("…")
	}
	return sb.String()
}
