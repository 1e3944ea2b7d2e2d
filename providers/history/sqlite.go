package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed Store. Designed for local development and
// single-process deployments; auto-migrates its table on first use.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a SQLite database at path and
// migrates the conversation_messages table.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening sqlite %q: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS conversation_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrating sqlite schema: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv
		ON conversation_messages(conversation_id, id)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrating sqlite index: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close satisfies component.Closer. Registry.Closers collects components
// only, so scheduler teardown does not close history backends.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Append(ctx context.Context, conversationID string, msg Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_messages (conversation_id, role, content) VALUES (?, ?, ?)`,
		conversationID, msg.Role, msg.Content)
	if err != nil {
		return fmt.Errorf("history: sqlite append: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM conversation_messages WHERE conversation_id = ? ORDER BY id ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("history: sqlite load: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *SQLiteStore) Clear(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("history: sqlite clear: %w", err)
	}
	return nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("history: scanning row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating rows: %w", err)
	}
	if out == nil {
		out = []Message{}
	}
	return out, nil
}
