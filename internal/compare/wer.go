// Package compare runs the same audio through a baseline session and a
// boosted session and reports accuracy side by side.
package compare

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// normalizeWords lowercases text and splits it into words with surrounding
// punctuation stripped, so "Kowalczyk," and "kowalczyk" compare equal.
func normalizeWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// wordErrorRate computes WER between a reference and a hypothesis word
// sequence. Each distinct word is mapped to a single rune so that a string
// edit distance becomes a word-level edit distance.
func wordErrorRate(ref, hyp []string) float64 {
	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0
		}
		return 1
	}

	// Private-use-area runes avoid collisions with real text.
	const base = rune(0xE000)
	codes := make(map[string]rune, len(ref)+len(hyp))
	encode := func(words []string) string {
		var b strings.Builder
		for _, w := range words {
			r, ok := codes[w]
			if !ok {
				r = base + rune(len(codes))
				codes[w] = r
			}
			b.WriteRune(r)
		}
		return b.String()
	}

	refStr := encode(ref)
	hypStr := encode(hyp)
	dist := matchr.Levenshtein(refStr, hypStr)
	return float64(dist) / float64(len(ref))
}

// countOccurrences counts how many normalized words of text equal term.
// Multi-word terms count contiguous word-sequence matches.
func countOccurrences(text, term string) int {
	words := normalizeWords(text)
	termWords := normalizeWords(term)
	if len(termWords) == 0 || len(words) < len(termWords) {
		return 0
	}

	count := 0
	for i := 0; i+len(termWords) <= len(words); i++ {
		match := true
		for j, tw := range termWords {
			if words[i+j] != tw {
				match = false
				break
			}
		}
		if match {
			count++
		}
	}
	return count
}
