package dbstore

import (
	"context"
	"time"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// Conversation groups a sequence of messages exchanged during a play
// session, so a GM or player tool client can scroll back through prior
// turns.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single turn in a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// CreateConversation inserts a new conversation row.
func (s *Store) CreateConversation(ctx context.Context, c *Conversation) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Title, now, now)
	if err != nil {
		return senerrors.DBQuery(err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, now)
	c.UpdatedAt = c.CreatedAt
	return nil
}

// AppendMessage inserts a message and bumps the parent conversation's
// updated_at timestamp.
func (s *Store) AppendMessage(ctx context.Context, m *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return senerrors.DBQuery(err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, now); err != nil {
		return senerrors.DBQuery(err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, m.ConversationID); err != nil {
		return senerrors.DBQuery(err)
	}
	if err := tx.Commit(); err != nil {
		return senerrors.DBQuery(err)
	}

	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, now)
	return nil
}

// GetConversationMessages returns every message in a conversation,
// oldest first.
func (s *Store) GetConversationMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, senerrors.DBQuery(err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, senerrors.DBQuery(err)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		messages = append(messages, &m)
	}
	return messages, wrapDBQuery(rows.Err())
}
