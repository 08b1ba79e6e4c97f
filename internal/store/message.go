package store

import (
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// InsertMessage persists body by authorID in key, creating the conversation
// if it does not exist yet, and updates its preview.
func (db *DB) InsertMessage(key, authorID, body string) (*Message, error) {
	now := time.Now().UnixMilli()
	m := &Message{
		ID:              uuid.NewString(),
		ConversationKey: key,
		AuthorID:        authorID,
		Body:            body,
		CreatedAt:       now,
	}

	err := db.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO conversations (key, initiator_id, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO NOTHING`, key, authorID, now); err != nil {
			return fmt.Errorf("ensure conversation: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO messages (id, conversation_key, author_id, body, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			m.ID, m.ConversationKey, m.AuthorID, m.Body, m.CreatedAt); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if _, err := tx.Exec(`
			UPDATE conversations SET last_message_body = ?, last_message_at = ?
			WHERE key = ? AND last_message_at <= ?`, body, now, key, now); err != nil {
			return fmt.Errorf("update preview: %w", err)
		}
		if err := tx.QueryRow(`SELECT COALESCE((SELECT name FROM users WHERE id = ?), '')`, authorID).
			Scan(&m.AuthorName); err != nil {
			return fmt.Errorf("author name: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns the latest limit messages of key in ascending order.
func (db *DB) ListMessages(key string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Query(`
		SELECT m.id, m.conversation_key, m.author_id, COALESCE(u.name, ''), m.body, m.created_at, m.read_at
		FROM messages m
		LEFT JOIN users u ON u.id = m.author_id
		WHERE m.conversation_key = ?
		ORDER BY m.created_at DESC, m.rowid DESC
		LIMIT ?`, key, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationKey, &m.AuthorID, &m.AuthorName, &m.Body, &m.CreatedAt, &m.ReadAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// MarkRead stamps every unread message in key not authored by readerID and
// returns how many changed.
func (db *DB) MarkRead(key, readerID string) (int64, error) {
	res, err := db.Exec(`
		UPDATE messages SET read_at = ?
		WHERE conversation_key = ? AND author_id != ? AND read_at = 0`,
		time.Now().UnixMilli(), key, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
