package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxConversations bounds how much history a single Load returns. Keyterm
// extraction only needs recent context, and the serialized record has to fit
// in one LLM prompt.
const maxConversations = 20

// schema is the DDL for the conversations table. EnsureSchema applies it
// idempotently.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    customer_id TEXT        NOT NULL,
    text        TEXT        NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    topics      TEXT[]      NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS conversations_customer_idx
    ON conversations (customer_id, occurred_at DESC);
`

// PostgresStore is a Store backed by a PostgreSQL conversations table.
// All methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database at dsn and verifies the
// connection with a ping.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the conversations table and index if they do not
// already exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("history: ensure schema: %w", err)
	}
	return nil
}

// Load implements Store. It returns the newest conversations for customerID,
// oldest first, bounded to keep the serialized record prompt-sized.
func (s *PostgresStore) Load(ctx context.Context, customerID string) (Record, error) {
	const q = `
		SELECT id, text, occurred_at, topics
		FROM (
		    SELECT id, text, occurred_at, topics
		    FROM   conversations
		    WHERE  customer_id = $1
		    ORDER  BY occurred_at DESC
		    LIMIT  $2
		) latest
		ORDER BY occurred_at`

	rows, err := s.pool.Query(ctx, q, customerID, maxConversations)
	if err != nil {
		return Record{}, fmt.Errorf("history: query: %w", err)
	}

	convs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Conversation, error) {
		var c Conversation
		if err := row.Scan(&c.ID, &c.Text, &c.Date, &c.Topics); err != nil {
			return Conversation{}, err
		}
		return c, nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("history: scan rows: %w", err)
	}
	if len(convs) == 0 {
		return Record{}, ErrNotFound
	}

	return Record{CustomerID: customerID, Conversations: convs}, nil
}

// Ping verifies database connectivity. Used by the readiness probe.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ensure PostgresStore implements Store at compile time.
var _ Store = (*PostgresStore)(nil)
