package stream

import "time"

// TurnEvent is a single unit of recognized speech emitted by a streaming
// session. Partial and finalized results share this type; EndOfTurn
// distinguishes them.
type TurnEvent struct {
	// Text is the transcribed speech content for the current turn so far.
	Text string

	// EndOfTurn marks a finalized turn. Events with EndOfTurn false are
	// in-progress partials and must not be counted toward the session log.
	EndOfTurn bool

	// Formatted reports whether Text has received final punctuation and
	// casing. Recognizers that format turns emit the same turn twice: once
	// unformatted at end of turn, then again formatted.
	Formatted bool

	// Confidence is the recognizer's end-of-turn confidence (0.0-1.0).
	// Zero when the recognizer does not report it.
	Confidence float64

	// Words contains per-word detail when the recognizer supplies it.
	Words []WordDetail
}

// WordDetail holds per-word metadata for recognizers that report it.
type WordDetail struct {
	Text       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
	IsFinal    bool
}

// SessionInfo describes an established streaming session.
type SessionInfo struct {
	// ID is the recognizer-assigned session identifier.
	ID string

	// ExpiresAt is when the recognizer will forcibly terminate the session.
	// Zero when the recognizer does not report an expiry.
	ExpiresAt time.Time
}
