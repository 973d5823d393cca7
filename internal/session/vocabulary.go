// Package session orchestrates a live transcription session with dynamic
// vocabulary boosting: it pumps audio into a streaming recognizer, merges
// LLM-generated keyterm sets into the live session without interrupting it,
// and triggers refreshes as the conversation progresses.
package session

import "github.com/keybeam/keybeam/internal/keyterms"

// VocabularyController tracks the active keyterm set and decides when a
// mid-session refresh is due.
//
// The controller is deliberately unsynchronized: it is owned by the
// orchestrator's event loop, which is the single writer. Extraction results
// computed on other goroutines are handed to that loop over a channel before
// they touch the controller.
type VocabularyController struct {
	active   keyterms.Set
	baseline keyterms.Set
	maxTerms int

	wordThreshold     int
	wordsSinceRefresh int
	refreshInFlight   bool
}

// NewVocabularyController creates a controller whose active set starts as the
// baseline. wordThreshold is how many finalized words accumulate before a
// refresh is due; <= 0 disables refreshes.
func NewVocabularyController(baseline keyterms.Set, wordThreshold, maxTerms int) *VocabularyController {
	if maxTerms <= 0 {
		maxTerms = keyterms.DefaultMaxTerms
	}
	return &VocabularyController{
		active:        baseline,
		baseline:      baseline,
		maxTerms:      maxTerms,
		wordThreshold: wordThreshold,
	}
}

// Active returns the currently applied keyterm set.
func (c *VocabularyController) Active() keyterms.Set { return c.active }

// Apply merges a generated set with the baseline and makes the result active.
// The merge keeps a floor of baseline terms, so a personalized set can narrow
// the generic vocabulary but never fully replace it. Returns the merged set
// that should be pushed to the recognizer.
func (c *VocabularyController) Apply(generated keyterms.Set) keyterms.Set {
	c.active = keyterms.Union(generated, c.baseline, c.maxTerms)
	return c.active
}

// ObserveWords accumulates finalized words and reports whether a refresh
// should start now. When it returns true the caller must launch exactly one
// refresh and later call CompleteRefresh or AbortRefresh; until then further
// threshold crossings report false.
//
// The counter resets when the refresh starts, not when it finishes, so words
// spoken during a slow refresh count toward the next one.
func (c *VocabularyController) ObserveWords(n int) bool {
	if c.wordThreshold <= 0 || n <= 0 {
		return false
	}
	c.wordsSinceRefresh += n
	if c.refreshInFlight || c.wordsSinceRefresh < c.wordThreshold {
		return false
	}
	c.refreshInFlight = true
	c.wordsSinceRefresh = 0
	return true
}

// CompleteRefresh applies the refreshed set and re-arms refresh triggering.
// Returns the merged set to push to the recognizer.
func (c *VocabularyController) CompleteRefresh(generated keyterms.Set) keyterms.Set {
	c.refreshInFlight = false
	return c.Apply(generated)
}

// AbortRefresh re-arms refresh triggering without changing the active set.
// Called when a refresh fails; the session keeps its current vocabulary.
func (c *VocabularyController) AbortRefresh() {
	c.refreshInFlight = false
}

// RefreshInFlight reports whether a refresh has started but not yet
// completed or aborted.
func (c *VocabularyController) RefreshInFlight() bool { return c.refreshInFlight }

// WordsSinceRefresh reports the current word count toward the next refresh.
func (c *VocabularyController) WordsSinceRefresh() int { return c.wordsSinceRefresh }
