package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the delivery state of a message authored by the local user.
type Status string

const (
	StatusNone      Status = ""
	StatusNotSent   Status = "not_sent"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

var statusRank = map[Status]int{
	StatusNone:      0,
	StatusNotSent:   1,
	StatusSent:      2,
	StatusDelivered: 3,
	StatusRead:      4,
}

// Advance returns next if it is later than s in the not_sent → sent →
// delivered → read order, and s otherwise. Status never moves backwards.
func (s Status) Advance(next Status) Status {
	if statusRank[next] > statusRank[s] {
		return next
	}
	return s
}

// Message is one entry of a conversation as shown to the local user.
type Message struct {
	ID              string
	ConversationKey string
	AuthorName      string
	AuthorID        string
	Body            string
	Timestamp       time.Time
	Status          Status
}

// IsTemp reports whether the message still carries a locally generated id.
func (m Message) IsTemp() bool {
	return IsTempID(m.ID)
}

// Record is a message as persisted by the backend.
type Record struct {
	ID              string
	ConversationKey string
	AuthorID        string
	AuthorName      string
	Body            string
	CreatedAt       time.Time
	ReadAt          time.Time
}

// Identity is a resolved user.
type Identity struct {
	ID   string
	Name string
}

// IsZero reports whether the identity has not been resolved.
func (i Identity) IsZero() bool {
	return i.ID == ""
}

// Key returns the conversation key for a local user talking to counterpartID.
func Key(localUserID, counterpartID string) string {
	return localUserID + "-" + counterpartID
}

const tempPrefix = "temp-"

// NewTempID returns a temporary id of the form temp-<unix ms>-<random>.
func NewTempID(now time.Time) string {
	random, _, _ := strings.Cut(uuid.NewString(), "-")
	return fmt.Sprintf("%s%d-%s", tempPrefix, now.UnixMilli(), random)
}

// IsTempID reports whether id was produced by NewTempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}
