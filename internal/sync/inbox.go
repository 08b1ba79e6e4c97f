package sync

import (
	"slices"
	gosync "sync"
	"time"

	"github.com/matheus3301/storechat/internal/bus"
	"github.com/matheus3301/storechat/internal/chat"
)

// Inbox keeps the conversation list of the local user. Its previews are
// updated for every message, whether or not the conversation is open.
type Inbox struct {
	mu    gosync.Mutex
	convs map[string]chat.Conversation
	bus   *bus.Bus
}

// NewInbox creates an empty inbox.
func NewInbox(b *bus.Bus) *Inbox {
	return &Inbox{convs: make(map[string]chat.Conversation), bus: b}
}

// Seed merges conversations listed by the backend. A preview already newer
// than the backend's is kept.
func (in *Inbox) Seed(convs []chat.Conversation) {
	in.mu.Lock()
	for _, c := range convs {
		if cur, ok := in.convs[c.Key]; ok {
			if cur.LastMessage.Timestamp.After(c.LastMessage.Timestamp) {
				c.LastMessage = cur.LastMessage
			}
			if c.CounterpartName == "" {
				c.CounterpartName = cur.CounterpartName
			}
		}
		in.convs[c.Key] = c
	}
	in.mu.Unlock()

	in.bus.Emit(bus.KindConversationUpdated, "")
}

// Touch records body as the latest message of key, creating the entry on
// first sight. Older messages do not replace a newer preview.
func (in *Inbox) Touch(key, body string, ts time.Time) {
	if key == "" {
		return
	}
	in.mu.Lock()
	c, ok := in.convs[key]
	if !ok {
		c = chat.Conversation{Key: key}
	}
	if ts.Before(c.LastMessage.Timestamp) {
		in.mu.Unlock()
		return
	}
	c.LastMessage = chat.Preview{Body: body, Timestamp: ts}
	in.convs[key] = c
	in.mu.Unlock()

	in.bus.Emit(bus.KindConversationUpdated, key)
}

// SetCounterpart records who is on the other side of key.
func (in *Inbox) SetCounterpart(key, id, name string) {
	if key == "" {
		return
	}
	in.mu.Lock()
	c, ok := in.convs[key]
	if !ok {
		c = chat.Conversation{Key: key}
	}
	if id != "" {
		c.CounterpartID = id
	}
	if name != "" {
		c.CounterpartName = name
	}
	in.convs[key] = c
	in.mu.Unlock()

	in.bus.Emit(bus.KindConversationUpdated, key)
}

// Get returns the conversation for key.
func (in *Inbox) Get(key string) (chat.Conversation, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	c, ok := in.convs[key]
	return c, ok
}

// List returns all conversations, most recent first.
func (in *Inbox) List() []chat.Conversation {
	in.mu.Lock()
	out := make([]chat.Conversation, 0, len(in.convs))
	for _, c := range in.convs {
		out = append(out, c)
	}
	in.mu.Unlock()

	slices.SortFunc(out, func(a, b chat.Conversation) int {
		if c := b.LastMessage.Timestamp.Compare(a.LastMessage.Timestamp); c != 0 {
			return c
		}
		if a.Key < b.Key {
			return -1
		}
		if a.Key > b.Key {
			return 1
		}
		return 0
	})
	return out
}
