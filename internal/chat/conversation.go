package chat

import "time"

// Preview is the last message of a conversation, used by list views.
type Preview struct {
	Body      string
	Timestamp time.Time
}

// Conversation is one entry of the local user's inbox.
type Conversation struct {
	Key             string
	CounterpartID   string
	CounterpartName string
	LastMessage     Preview
}
