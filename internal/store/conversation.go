package store

import (
	"database/sql"
	"errors"
	"time"
)

// EnsureConversation creates key if absent and fills in participants a
// previous implicit creation left empty. It is idempotent.
func (db *DB) EnsureConversation(key, initiatorID, counterpartID string) (*Conversation, error) {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (key, initiator_id, counterpart_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			initiator_id = CASE WHEN conversations.initiator_id = '' THEN excluded.initiator_id ELSE conversations.initiator_id END,
			counterpart_id = CASE
				WHEN conversations.counterpart_id != '' THEN conversations.counterpart_id
				WHEN conversations.initiator_id = excluded.counterpart_id THEN excluded.initiator_id
				ELSE excluded.counterpart_id END`,
		key, initiatorID, counterpartID, now)
	if err != nil {
		return nil, err
	}
	return db.GetConversation(key, initiatorID)
}

// GetConversation returns key with the counterpart name resolved for viewerID.
func (db *DB) GetConversation(key, viewerID string) (*Conversation, error) {
	rows, err := db.Query(conversationQuery+` WHERE c.key = ?`, viewerID, key)
	if err != nil {
		return nil, err
	}
	convs, err := scanConversations(rows)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, ErrNotFound
	}
	return &convs[0], nil
}

// ListConversations returns the conversations userID takes part in, most
// recent first.
func (db *DB) ListConversations(userID string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(conversationQuery+`
		WHERE c.initiator_id = ?1 OR c.counterpart_id = ?1
		ORDER BY c.last_message_at DESC, c.created_at DESC
		LIMIT ?2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanConversations(rows)
}

// Participants returns the user ids recorded for key.
func (db *DB) Participants(key string) ([]string, error) {
	var initiator, counterpart string
	err := db.QueryRow(`SELECT initiator_id, counterpart_id FROM conversations WHERE key = ?`, key).
		Scan(&initiator, &counterpart)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, id := range []string{initiator, counterpart} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// conversationQuery expects the viewer id as its first argument. The
// counterpart is whichever participant is not the viewer.
const conversationQuery = `
	SELECT c.key, c.initiator_id, c.counterpart_id,
		COALESCE(u.name, '') AS counterpart_name,
		c.last_message_body, c.last_message_at, c.created_at
	FROM conversations c
	LEFT JOIN users u ON u.id = CASE WHEN c.initiator_id = ?1 THEN c.counterpart_id ELSE c.initiator_id END`

func scanConversations(rows *sql.Rows) ([]Conversation, error) {
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.Key, &c.InitiatorID, &c.CounterpartID, &c.CounterpartName,
			&c.LastMessageBody, &c.LastMessageAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}
