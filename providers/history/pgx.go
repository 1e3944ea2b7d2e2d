package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxStore is a PostgreSQL-backed Store using a pgx connection pool,
// grounded on leofalp/aigo's pgmemory provider (same session-scoped,
// sequence-ordered table shape, generalized from one-session-per-instance
// to a conversation id passed per call).
type PgxStore struct {
	pool *pgxpool.Pool
}

// NewPgxStore connects to dsn and migrates the conversation_messages table.
func NewPgxStore(ctx context.Context, dsn string) (*PgxStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: connecting pgx pool: %w", err)
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS conversation_messages (
		seq BIGSERIAL PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL
	)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: migrating pgx schema: %w", err)
	}
	if _, err := pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv
		ON conversation_messages(conversation_id, seq)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: migrating pgx index: %w", err)
	}
	return &PgxStore{pool: pool}, nil
}

// Close satisfies component.Closer.
func (s *PgxStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PgxStore) Append(ctx context.Context, conversationID string, msg Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_messages (conversation_id, role, content) VALUES ($1, $2, $3)`,
		conversationID, msg.Role, msg.Content)
	if err != nil {
		return fmt.Errorf("history: pgx append: %w", err)
	}
	return nil
}

func (s *PgxStore) Load(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, content FROM conversation_messages WHERE conversation_id = $1 ORDER BY seq ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("history: pgx load: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("history: pgx scanning row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: pgx iterating rows: %w", err)
	}
	if out == nil {
		out = []Message{}
	}
	return out, nil
}

func (s *PgxStore) Clear(ctx context.Context, conversationID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM conversation_messages WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("history: pgx clear: %w", err)
	}
	return nil
}
