package api

import (
	"time"

	"github.com/matheus3301/storechat/internal/chat"
	"github.com/matheus3301/storechat/internal/store"
)

type ResolveIdentityRequest struct {
	Name string `json:"name"`
}

type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type EnsureConversationRequest struct {
	Key           string `json:"key"`
	LocalUserID   string `json:"localUserId"`
	CounterpartID string `json:"counterpartId"`
}

// Conversation is a conversation as seen by one participant.
type Conversation struct {
	Key             string `json:"key"`
	CounterpartID   string `json:"counterpartId"`
	CounterpartName string `json:"counterpartName"`
	LastMessageBody string `json:"lastMessageBody,omitempty"`
	LastMessageAt   int64  `json:"lastMessageAt,omitempty"`
}

type FetchHistoryRequest struct {
	Key   string `json:"key"`
	Limit int    `json:"limit"`
}

type FetchHistoryResponse struct {
	Messages []Message `json:"messages"`
}

type PersistMessageRequest struct {
	Key      string `json:"key"`
	AuthorID string `json:"authorId"`
	Body     string `json:"body"`
}

// Message is a persisted message. Times are unix milliseconds; ReadAt is 0
// while unread.
type Message struct {
	ID         string `json:"id"`
	Key        string `json:"conversationKey"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Body       string `json:"body"`
	CreatedAt  int64  `json:"createdAt"`
	ReadAt     int64  `json:"readAt,omitempty"`
}

type MarkReadRequest struct {
	Key      string `json:"key"`
	ReaderID string `json:"readerId"`
}

type MarkReadResponse struct {
	ReadCount int `json:"readCount"`
}

type ListConversationsRequest struct {
	UserID string `json:"userId"`
}

type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

func conversationFromStore(c *store.Conversation, viewerID string) Conversation {
	return Conversation{
		Key:             c.Key,
		CounterpartID:   c.Other(viewerID),
		CounterpartName: c.CounterpartName,
		LastMessageBody: c.LastMessageBody,
		LastMessageAt:   c.LastMessageAt,
	}
}

func messageFromStore(m *store.Message) Message {
	return Message{
		ID:         m.ID,
		Key:        m.ConversationKey,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
		ReadAt:     m.ReadAt,
	}
}

// ToRecord converts a wire message into a backend record.
func (m Message) ToRecord() chat.Record {
	r := chat.Record{
		ID:              m.ID,
		ConversationKey: m.Key,
		AuthorID:        m.AuthorID,
		AuthorName:      m.AuthorName,
		Body:            m.Body,
		CreatedAt:       fromMillis(m.CreatedAt),
	}
	if m.ReadAt != 0 {
		r.ReadAt = fromMillis(m.ReadAt)
	}
	return r
}

// ToChat converts a wire conversation into an inbox entry.
func (c Conversation) ToChat() chat.Conversation {
	conv := chat.Conversation{
		Key:             c.Key,
		CounterpartID:   c.CounterpartID,
		CounterpartName: c.CounterpartName,
	}
	if c.LastMessageAt != 0 {
		conv.LastMessage = chat.Preview{Body: c.LastMessageBody, Timestamp: fromMillis(c.LastMessageAt)}
	}
	return conv
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
