package bus

import "time"

// Event kinds published inside the client. Subscribers filter by prefix,
// so "chat." receives every engine notification.
const (
	KindMessagesChanged     = "chat.messages_changed"
	KindConversationUpdated = "conversation.updated"
	KindTypingChanged       = "typing.changed"
	KindStatusChanged       = "channel.status_changed"
	KindConnected           = "channel.connected"
	KindDisconnected        = "channel.disconnected"
	KindPersistFailed       = "outbox.persist_failed"
	KindPersisted           = "outbox.persisted"

	// LivePrefix namespaces inbound live-channel frames; the frame type follows.
	LivePrefix = "live."
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
