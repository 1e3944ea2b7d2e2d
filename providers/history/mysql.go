package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB-backed Store, for production deployments
// that need a conversation log surviving process restarts.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a connection pool against dsn and migrates the
// conversation_messages table.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: opening mysql: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS conversation_messages (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		conversation_id VARCHAR(255) NOT NULL,
		role VARCHAR(32) NOT NULL,
		content TEXT NOT NULL,
		INDEX idx_conversation (conversation_id, id)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrating mysql schema: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

// Close satisfies component.Closer.
func (s *MySQLStore) Close() error { return s.db.Close() }

func (s *MySQLStore) Append(ctx context.Context, conversationID string, msg Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_messages (conversation_id, role, content) VALUES (?, ?, ?)`,
		conversationID, msg.Role, msg.Content)
	if err != nil {
		return fmt.Errorf("history: mysql append: %w", err)
	}
	return nil
}

func (s *MySQLStore) Load(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM conversation_messages WHERE conversation_id = ? ORDER BY id ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("history: mysql load: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *MySQLStore) Clear(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("history: mysql clear: %w", err)
	}
	return nil
}
