// Package text holds the tokenizing and keyword-overlap primitives shared by
// the retriever and the citation validator. Scores are exact token
// arithmetic, not model calls, so results are deterministic.
package text

import (
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"had": true, "has": true, "have": true, "he": true, "her": true,
	"his": true, "how": true, "i": true, "if": true, "in": true, "is": true,
	"it": true, "its": true, "me": true, "my": true, "not": true, "of": true,
	"on": true, "or": true, "our": true, "she": true, "so": true,
	"that": true, "the": true, "their": true, "them": true, "then": true,
	"there": true, "these": true, "they": true, "this": true, "to": true,
	"was": true, "we": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "will": true, "with": true,
	"would": true, "you": true, "your": true,
}

// IsStopWord reports whether the lowercased token is in the stop-word set.
func IsStopWord(tok string) bool {
	return stopWords[strings.ToLower(tok)]
}

// Tokenize lowercases s, strips punctuation and splits on whitespace.
// Stop words are kept; callers filter as needed.
func Tokenize(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'':
			// keep contractions intact ("don't")
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// Terms extracts query terms for lexical search: tokens with punctuation
// stripped, stop words dropped, and anything of length <= 2 discarded.
func Terms(query string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range Tokenize(query) {
		if len(tok) <= 2 || stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// Keywords returns up to n distinct non-stop-word tokens in order of first
// appearance.
func Keywords(s string, n int) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range Tokenize(s) {
		if stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
		if len(out) >= n {
			break
		}
	}
	return out
}

// Jaccard computes |a∩b| / |a∪b| over two keyword slices. Empty union
// yields 0.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := map[string]bool{}
	for _, t := range a {
		setA[t] = true
	}
	union := map[string]bool{}
	for t := range setA {
		union[t] = true
	}
	inter := 0
	seenB := map[string]bool{}
	for _, t := range b {
		union[t] = true
		if setA[t] && !seenB[t] {
			inter++
		}
		seenB[t] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(inter) / float64(len(union))
}

// KeywordOverlap is the Jaccard overlap of the top-n keyword sets of two
// texts.
func KeywordOverlap(a, b string, n int) float64 {
	return Jaccard(Keywords(a, n), Keywords(b, n))
}

// StopWordRatio is the fraction of tokens that are stop words. Used as a
// crude coherence signal: natural prose sits roughly in [0.1, 0.4].
func StopWordRatio(s string) float64 {
	toks := Tokenize(s)
	if len(toks) == 0 {
		return 0
	}
	n := 0
	for _, t := range toks {
		if stopWords[t] {
			n++
		}
	}
	return float64(n) / float64(len(toks))
}

// CountWords counts whitespace-separated words without normalizing.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// CountSentences counts terminal punctuation runs (". ! ?").
func CountSentences(s string) int {
	n := 0
	inTerminal := false
	for _, r := range s {
		if r == '.' || r == '!' || r == '?' {
			if !inTerminal {
				n++
			}
			inTerminal = true
		} else {
			inTerminal = false
		}
	}
	return n
}

// EndsWithTerminal reports whether the trimmed text ends in ". ! ?".
func EndsWithTerminal(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
