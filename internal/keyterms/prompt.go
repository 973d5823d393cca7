package keyterms

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/keybeam/keybeam/internal/history"
)

// refreshHistoryWindow bounds how many past conversations the refresh prompt
// carries. Refresh prompts run mid-call, so they stay smaller than the
// initial extraction prompt.
const refreshHistoryWindow = 3

// promptCurrentTermsLimit caps how many of the current terms the refresh
// prompt echoes back. The model does not need the full list to reason about
// what to keep.
const promptCurrentTermsLimit = 50

const extractSystemPrompt = `You are helping improve speech recognition accuracy ` +
	`for a housing and healthcare appointment scheduling system.`

const refreshSystemPrompt = `You are helping improve speech recognition accuracy ` +
	`for a housing and healthcare appointment scheduling call in progress.`

// buildExtractPrompt renders the initial extraction prompt over a customer's
// conversation history. The proper-noun rules matter: recognizers process
// words individually, so hyphenated names must appear both whole and split
// into components, and misspelling-prone names must keep their exact spelling.
func buildExtractPrompt(rec history.Record, maxTerms int) string {
	texts := make([]string, 0, len(rec.Conversations))
	for _, c := range rec.Conversations {
		texts = append(texts, c.Text)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `TASK: Extract ALL proper nouns from the conversation history below and return them as keyterms for speech recognition boosting.

CRITICAL - THE FIRST 30+ KEYTERMS MUST BE PROPER NOUNS FROM THE TEXT:
1. All PERSON NAMES, extracted EXACTLY as spelled:
   - Full names with titles (e.g. "Dr. Firstname Lastname")
   - Full names without titles
   - First names alone and last names alone
   - For hyphenated names like "Smith-Jones", include the full hyphenated form AND each component ("Smith", "Jones") separately, since the recognizer scores words individually
   - Keep diacritics if present in the original
2. All PLACE and ORGANIZATION NAMES, exactly as spelled, including the distinctive word from each name. Hyphenated place names follow the same split rule as person names.
3. All MEDICATION NAMES, exactly as spelled.

Phonetically ambiguous words are the whole point: Irish names ("Siobhan" sounds like "Shivawn"), Polish names ("Kowalczyk" sounds like "Kovalchik"), place names ("Natchitoches" sounds like "Nack-a-tish"), and medical terms are exactly what the recognizer gets wrong without boosting.

PREVIOUS CONVERSATIONS:
%s

OUTPUT FORMAT:
Return ONLY a JSON array of exactly %d strings. The first 30+ MUST be the exact proper nouns extracted from the conversations above. Fill remaining slots with common healthcare/housing terms.
IMPORTANT: Do NOT include the word "clinic" as it sounds like "calling" and causes transcription errors.
No explanation or markdown, just the JSON array.`,
		strings.Join(texts, "\n\n"), maxTerms)
	return b.String()
}

// buildRefreshPrompt renders the mid-call refresh prompt: the current term
// list, the live transcript so far, and a short window of past conversations
// for context. The misheard-word instruction is what lets a refresh correct
// the recognizer's own mistakes.
func buildRefreshPrompt(current Set, transcript string, rec history.Record, maxTerms int) string {
	recent := rec.Recent(refreshHistoryWindow)
	texts := make([]string, 0, len(recent))
	for _, c := range recent {
		texts = append(texts, c.Text)
	}

	terms := current.Terms()
	truncated := ""
	if len(terms) > promptCurrentTermsLimit {
		terms = terms[:promptCurrentTermsLimit]
		truncated = "... (truncated)"
	}
	currentJSON, _ := json.Marshal(terms)

	var b strings.Builder
	fmt.Fprintf(&b, `CURRENT SITUATION:
- This is a live call about housing or healthcare appointment scheduling
- Below is what has been transcribed so far in this call
- You also have the current keyterms being used and previous conversation history

TASK: Generate an updated list of exactly %d keyterms optimized for what might be said next in this conversation.

STRATEGY:
1. Keep keyterms that are still relevant based on the conversation context
2. Add new keyterms for entities or topics mentioned in the current call that were not in the original list
3. Remove keyterms that seem unlikely to appear based on the conversation direction
4. Include any names, locations, medical terms, or housing terms mentioned in the current call

CRITICAL:
- The transcript may contain MISHEARD words. Look for phonetically similar patterns and include the CORRECT spelling from the conversation history, not the misheard version.
- If something in the transcript looks like a mangled version of a name or medication from the history, include the correct version from history, never the misheard one.

CURRENT KEYTERMS (may keep, modify, or replace):
%s%s

CURRENT CALL TRANSCRIPT:
%s

RECENT CONVERSATION HISTORY (for context):
%s

OUTPUT FORMAT:
Return ONLY a JSON array of exactly %d strings, each being a keyterm of 50 characters or less.
No explanation or markdown, just the JSON array.`,
		maxTerms, currentJSON, truncated, transcript, strings.Join(texts, "\n"), maxTerms)
	return b.String()
}
