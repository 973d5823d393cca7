// Package history provides access to a customer's prior conversation
// transcripts, which seed personalized keyterm extraction.
//
// Two implementations exist: MemStore, a static lookup table used by the
// demo, and PostgresStore, a pgx-backed store for production deployments.
// Both are read-only from the caller's perspective.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Load when no history exists for a
// customer. It is not a failure condition: callers fall back to the generic
// vocabulary and continue.
var ErrNotFound = errors.New("history: no conversations for customer")

// Conversation is one prior interaction with a customer.
type Conversation struct {
	// ID uniquely identifies the conversation record.
	ID string

	// Text is the conversation transcript.
	Text string

	// Date is when the conversation took place.
	Date time.Time

	// Topics are optional tags describing the conversation subject.
	Topics []string
}

// Record is the bounded conversation history for one customer. Immutable
// once loaded.
type Record struct {
	// CustomerID identifies the customer the history belongs to.
	CustomerID string

	// Conversations is ordered oldest first.
	Conversations []Conversation
}

// Empty reports whether the record contains no conversations.
func (r Record) Empty() bool {
	return len(r.Conversations) == 0
}

// Recent returns the newest n conversations, oldest first. If the record
// holds fewer than n, all of them are returned.
func (r Record) Recent(n int) []Conversation {
	if n <= 0 || len(r.Conversations) == 0 {
		return nil
	}
	if n >= len(r.Conversations) {
		return r.Conversations
	}
	return r.Conversations[len(r.Conversations)-n:]
}

// Store is a keyed lookup of conversation history.
//
// Load must be idempotent and side-effect-free. Implementations return
// ErrNotFound when no history exists; they never fabricate data.
type Store interface {
	Load(ctx context.Context, customerID string) (Record, error)
}
