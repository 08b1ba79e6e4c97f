// Package history holds the backend collaborator contract and the loader
// that fetches persisted messages for a conversation.
package history

import (
	"context"
	"errors"

	"github.com/matheus3301/storechat/internal/chat"
)

// ErrNoIdentity is returned when an operation needs the local user id before
// it has been resolved.
var ErrNoIdentity = errors.New("local identity not resolved")

// Backend is the durable side of the system.
type Backend interface {
	ResolveIdentity(ctx context.Context, name string) (chat.Identity, error)
	EnsureConversation(ctx context.Context, key, localUserID, counterpartID string) (chat.Conversation, error)
	FetchHistory(ctx context.Context, key string, limit int) ([]chat.Record, error)
	PersistMessage(ctx context.Context, key, authorID, body string) (chat.Record, error)
	MarkRead(ctx context.Context, key, readerID string) (int, error)
	ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error)
}
