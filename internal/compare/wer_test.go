package compare

import (
	"math"
	"testing"
)

func TestNormalizeWords(t *testing.T) {
	t.Parallel()

	got := normalizeWords("  Siobhan Kowalczyk, needs an appointment. ")
	want := []string{"siobhan", "kowalczyk", "needs", "an", "appointment"}
	if len(got) != len(want) {
		t.Fatalf("normalizeWords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWordErrorRate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ref  string
		hyp  string
		want float64
	}{
		{"identical", "the quick brown fox", "the quick brown fox", 0},
		{"one substitution", "siobhan needs an appointment", "shivawn needs an appointment", 0.25},
		{"one deletion", "a b c d", "a b c", 0.25},
		{"one insertion", "a b c d", "a b x c d", 0.25},
		{"everything wrong", "a b", "x y", 1},
		{"empty hypothesis", "a b c d", "", 1},
		{"both empty", "", "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := wordErrorRate(normalizeWords(tc.ref), normalizeWords(tc.hyp))
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("wordErrorRate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWordErrorRateIgnoresCaseAndPunctuation(t *testing.T) {
	t.Parallel()

	ref := normalizeWords("Siobhan Kowalczyk needs an appointment")
	hyp := normalizeWords("siobhan kowalczyk, needs an appointment.")
	if got := wordErrorRate(ref, hyp); got != 0 {
		t.Errorf("wordErrorRate = %v, want 0 for case/punctuation differences", got)
	}
}

func TestCountOccurrences(t *testing.T) {
	t.Parallel()

	text := "Siobhan called about Siobhan Kowalczyk and the Winston-Salem housing authority."

	cases := []struct {
		term string
		want int
	}{
		{"Siobhan", 2},
		{"siobhan kowalczyk", 1},
		{"housing authority", 1},
		{"Natchitoches", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := countOccurrences(text, tc.term); got != tc.want {
			t.Errorf("countOccurrences(%q) = %d, want %d", tc.term, got, tc.want)
		}
	}
}
