// Package keyterms owns the vocabulary side of boosting: the KeytermSet
// value type, the static fallback vocabulary, and the LLM-backed extractor
// that turns conversation history into a personalized term list.
package keyterms

import "strings"

const (
	// DefaultMaxTerms is the default cardinality cap for a Set. Streaming
	// recognizers accept at most this many vocabulary hints per session.
	DefaultMaxTerms = 100

	// maxTermLength is the longest accepted term, in runes. Longer entries
	// exceed what the streaming transport accepts per keyterm.
	maxTermLength = 50

	// baselineDivisor sets the share of the cap reserved for baseline terms
	// during Union: max/baselineDivisor slots can never be claimed by the
	// primary set.
	baselineDivisor = 4
)

// Set is an ordered list of distinct, non-empty vocabulary terms, capped at a
// maximum cardinality. The zero value is an empty Set. Sets are immutable;
// every operation returns a new value.
//
// Term identity is case-insensitive: "Medicare" and "medicare" are the same
// term, and the first spelling seen wins.
type Set struct {
	terms []string
}

// New builds a Set from terms: entries are whitespace-trimmed, empties and
// over-long entries are dropped, duplicates are removed (first occurrence
// wins), and the result is truncated to max. max <= 0 selects
// DefaultMaxTerms.
func New(terms []string, max int) Set {
	if max <= 0 {
		max = DefaultMaxTerms
	}

	out := make([]string, 0, min(len(terms), max))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" || len([]rune(t)) > maxTermLength {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if len(out) == max {
			break
		}
	}
	return Set{terms: out}
}

// Terms returns a copy of the term list in order.
func (s Set) Terms() []string {
	out := make([]string, len(s.terms))
	copy(out, s.terms)
	return out
}

// Len returns the number of terms.
func (s Set) Len() int { return len(s.terms) }

// IsEmpty reports whether the set has no terms.
func (s Set) IsEmpty() bool { return len(s.terms) == 0 }

// Contains reports whether term is in the set, case-insensitively.
func (s Set) Contains(term string) bool {
	key := strings.ToLower(strings.TrimSpace(term))
	for _, t := range s.terms {
		if strings.ToLower(t) == key {
			return true
		}
	}
	return false
}

// Union merges primary and baseline into a new Set capped at max, with
// primary's terms ordered first. A floor of max/4 slots is reserved for
// baseline terms, so the baseline is never evicted entirely no matter how
// large primary is; the rest of the baseline fills whatever room remains.
func Union(primary, baseline Set, max int) Set {
	if max <= 0 {
		max = DefaultMaxTerms
	}

	// Baseline terms not already covered by primary.
	extra := make([]string, 0, baseline.Len())
	for _, t := range baseline.terms {
		if !primary.Contains(t) {
			extra = append(extra, t)
		}
	}

	reserved := min(max/baselineDivisor, len(extra))
	primaryCap := max - reserved

	merged := make([]string, 0, max)
	merged = append(merged, primary.terms[:min(len(primary.terms), primaryCap)]...)
	merged = append(merged, extra...)

	return New(merged, max)
}
