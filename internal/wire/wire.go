// Package wire defines the live channel frames exchanged between chatd and
// its clients. Every frame is a JSON envelope {"type": ..., "payload": ...}.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/storechat/internal/chat"
)

// Client to server.
const (
	TypeIdentityJoin = "identity.join"
	TypeRoomJoin     = "room.join"
	TypeRoomLeave    = "room.leave"
	TypeMessageSend  = "message.send"
	TypeTypingStart  = "typing.start"
	TypeTypingStop   = "typing.stop"
)

// Server to client.
const (
	TypeIdentityJoined  = "identity.joined"
	TypeRoomJoined      = "room.joined"
	TypeMessageReceived = "message.received"
	TypeTyping          = "typing"
	TypeError           = "error"
)

// TypeMessagesRead travels both ways: the reader emits it, the room receives it.
const TypeMessagesRead = "messages.read"

// Envelope is the wire format for all frames.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", e.Type, err)
	}
	return nil
}

// New builds an envelope around payload.
func New(typ string, payload any) (Envelope, error) {
	env := Envelope{Type: typ}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return env, fmt.Errorf("%s: encode payload: %w", typ, err)
	}
	env.Payload = raw
	return env, nil
}

// Encode returns the JSON bytes of an envelope around payload.
func Encode(typ string, payload any) ([]byte, error) {
	env, err := New(typ, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Identity announces who is on the other end of a connection.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Room names a conversation key.
type Room struct {
	Key string `json:"conversationKey"`
}

// RoomJoined acknowledges a room join.
type RoomJoined struct {
	Key             string    `json:"conversationKey"`
	CounterpartName string    `json:"counterpartName"`
	History         []Message `json:"history,omitempty"`
}

// Send carries a message body; the server stamps author and time.
type Send struct {
	Key  string `json:"conversationKey"`
	Body string `json:"body"`
}

// Message is a message pushed by the server.
type Message struct {
	ID         string    `json:"id"`
	Key        string    `json:"conversationKey"`
	AuthorID   string    `json:"authorId,omitempty"`
	AuthorName string    `json:"authorName"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
}

// Typing reports a typing transition of AuthorName in a room.
type Typing struct {
	Key        string `json:"conversationKey"`
	AuthorID   string `json:"authorId,omitempty"`
	AuthorName string `json:"authorName,omitempty"`
	IsTyping   bool   `json:"isTyping"`
}

// Read reports that ReaderID has read the room.
type Read struct {
	Key      string `json:"conversationKey"`
	ReaderID string `json:"readerId,omitempty"`
}

// Error is sent when the server rejects a frame.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToChat converts a pushed message into an engine message without status.
func (m Message) ToChat() chat.Message {
	return chat.Message{
		ID:              m.ID,
		ConversationKey: m.Key,
		AuthorID:        m.AuthorID,
		AuthorName:      m.AuthorName,
		Body:            m.Body,
		Timestamp:       m.Timestamp,
	}
}

// FromRecord converts a persisted record into a pushed message.
func FromRecord(r chat.Record) Message {
	return Message{
		ID:         r.ID,
		Key:        r.ConversationKey,
		AuthorID:   r.AuthorID,
		AuthorName: r.AuthorName,
		Body:       r.Body,
		Timestamp:  r.CreatedAt,
	}
}
