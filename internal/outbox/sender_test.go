package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/storechat/internal/bus"
	"github.com/matheus3301/storechat/internal/channel"
	"github.com/matheus3301/storechat/internal/chat"
	chatsync "github.com/matheus3301/storechat/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var self = chat.Identity{ID: "u1", Name: "ana"}

const key = "u1-s1"

// fakeRemote stands in for both the live channel and the backend.
type fakeRemote struct {
	mu         sync.Mutex
	emitted    []string
	emitErr    error
	persistErr error
	persisted  int
}

func (f *fakeRemote) SendMessage(_ context.Context, k, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emitted = append(f.emitted, k+":"+body)
	return nil
}

func (f *fakeRemote) PersistMessage(_ context.Context, k, authorID, body string) (chat.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return chat.Record{}, f.persistErr
	}
	f.persisted++
	return chat.Record{
		ID:              "p1",
		ConversationKey: k,
		AuthorID:        authorID,
		AuthorName:      "ana",
		Body:            body,
		CreatedAt:       time.Now().Add(time.Second),
	}, nil
}

func setup(t *testing.T, remote *fakeRemote) (*Sender, *chatsync.Engine, *chatsync.Inbox, *bus.Bus) {
	t.Helper()
	b := bus.New()
	e := chatsync.NewEngine(chatsync.Options{Bus: b})
	e.Reset(key, self)
	require.True(t, e.InstallBaseline(key, nil))
	inbox := chatsync.NewInbox(b)
	return NewSender(e, remote, remote, inbox, b, nil), e, inbox, b
}

func TestSendReconciles(t *testing.T) {
	remote := &fakeRemote{}
	s, e, inbox, b := setup(t, remote)
	persisted, unsub := b.Subscribe(bus.KindPersisted, 1)
	defer unsub()

	id, err := s.Send(context.Background(), "  is this in stock?  ")
	require.NoError(t, err)
	require.True(t, chat.IsTempID(id))

	msgs := e.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "p1", msgs[0].ID)
	assert.Equal(t, "u1", msgs[0].AuthorID)
	assert.Equal(t, "is this in stock?", msgs[0].Body)
	assert.Equal(t, chat.StatusDelivered, msgs[0].Status)
	assert.Equal(t, []string{key + ":is this in stock?"}, remote.emitted)

	c, ok := inbox.Get(key)
	require.True(t, ok)
	assert.Equal(t, "is this in stock?", c.LastMessage.Body)

	evt := <-persisted
	assert.Equal(t, Persisted{TempID: id, ID: "p1"}, evt.Payload)
}

func TestPersistFailureLeavesSent(t *testing.T) {
	remote := &fakeRemote{persistErr: errors.New("backend down")}
	s, e, _, b := setup(t, remote)
	failed, unsub := b.Subscribe(bus.KindPersistFailed, 1)
	defer unsub()

	id, err := s.Send(context.Background(), "hello")
	require.NoError(t, err, "persist failure alone is a soft degradation")

	m, ok := e.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, chat.StatusSent, m.Status)
	assert.Len(t, failed, 1)

	// Resend only applies to not_sent messages.
	require.NoError(t, s.Resend(context.Background(), id))
	assert.Len(t, remote.emitted, 1)
}

func TestEmitFailureStillPersists(t *testing.T) {
	remote := &fakeRemote{emitErr: channel.ErrNotConnected}
	s, e, _, _ := setup(t, remote)

	_, err := s.Send(context.Background(), "offline")
	require.NoError(t, err)

	msgs := e.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "p1", msgs[0].ID)
	assert.Equal(t, chat.StatusDelivered, msgs[0].Status)
}

func TestBothFailThenResend(t *testing.T) {
	remote := &fakeRemote{emitErr: channel.ErrNotConnected, persistErr: errors.New("backend down")}
	s, e, _, _ := setup(t, remote)

	id, err := s.Send(context.Background(), "retry me")
	require.Error(t, err)
	assert.ErrorIs(t, err, channel.ErrNotConnected)

	m, _ := e.Lookup(id)
	assert.Equal(t, chat.StatusNotSent, m.Status)
	ts := m.Timestamp

	remote.mu.Lock()
	remote.emitErr, remote.persistErr = nil, nil
	remote.mu.Unlock()

	require.NoError(t, s.Resend(context.Background(), id))
	msgs := e.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "p1", msgs[0].ID)
	assert.Equal(t, chat.StatusDelivered, msgs[0].Status)
	assert.True(t, msgs[0].Timestamp.Equal(ts))
}

func TestSendRejects(t *testing.T) {
	remote := &fakeRemote{}
	s, e, _, _ := setup(t, remote)

	_, err := s.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyBody)

	assert.ErrorIs(t, s.Resend(context.Background(), "temp-0-none"), ErrUnknownMessage)

	e.Reset("", chat.Identity{})
	_, err = s.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoConversation)
	assert.Empty(t, remote.emitted)
}
