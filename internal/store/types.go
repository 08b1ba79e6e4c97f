package store

// User is a named participant. Ids are assigned on first sight of a name.
type User struct {
	ID        string
	Name      string
	CreatedAt int64
}

// Conversation is a chat between an initiator and a counterpart. The
// counterpart name is resolved relative to the viewer who asked.
type Conversation struct {
	Key             string
	InitiatorID     string
	CounterpartID   string
	CounterpartName string
	LastMessageBody string
	LastMessageAt   int64
	CreatedAt       int64
}

// Other returns the participant that is not viewerID.
func (c Conversation) Other(viewerID string) string {
	if c.InitiatorID == viewerID {
		return c.CounterpartID
	}
	return c.InitiatorID
}

// Message is a persisted message. Times are unix milliseconds; ReadAt is 0
// until the other participant reads it.
type Message struct {
	ID              string
	ConversationKey string
	AuthorID        string
	AuthorName      string
	Body            string
	CreatedAt       int64
	ReadAt          int64
}
