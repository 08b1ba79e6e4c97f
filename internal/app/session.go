package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/storechat/internal/api"
	"github.com/matheus3301/storechat/internal/bus"
	"github.com/matheus3301/storechat/internal/channel"
	"github.com/matheus3301/storechat/internal/chat"
	"github.com/matheus3301/storechat/internal/receipt"
	"github.com/matheus3301/storechat/internal/room"
	"github.com/matheus3301/storechat/internal/status"
	chatsync "github.com/matheus3301/storechat/internal/sync"
	"github.com/matheus3301/storechat/internal/typing"
	"go.uber.org/zap"
)

// ErrSelfConversation is returned when opening a conversation with oneself.
var ErrSelfConversation = errors.New("cannot open a conversation with yourself")

// Session is the surface the terminal UI drives. Every call is safe from
// any goroutine; state changes are announced on the bus.
type Session struct {
	userName    string
	counterpart string

	room     *room.Controller
	engine   *chatsync.Engine
	inbox    *chatsync.Inbox
	channel  *channel.Manager
	receipts *receipt.Debouncer
	typing   *typing.Controller
	machine  *status.Machine
	backend  *api.Client
	bus      *bus.Bus
	logger   *zap.Logger
}

// NewSession groups the client components.
func NewSession(p Params, r *room.Controller, engine *chatsync.Engine, inbox *chatsync.Inbox,
	ch *channel.Manager, receipts *receipt.Debouncer, typ *typing.Controller,
	machine *status.Machine, backend *api.Client, b *bus.Bus, logger *zap.Logger) *Session {
	return &Session{
		userName:    p.UserName,
		counterpart: p.Counterpart,
		room:        r,
		engine:      engine,
		inbox:       inbox,
		channel:     ch,
		receipts:    receipts,
		typing:      typ,
		machine:     machine,
		backend:     backend,
		bus:         b,
		logger:      logger,
	}
}

// Connect resolves the local identity, seeds the inbox and opens the live
// channel. A channel that cannot be opened leaves the session usable for
// history and sends; the room rejoins once the channel comes up.
func (s *Session) Connect(ctx context.Context) error {
	self, err := s.backend.ResolveIdentity(ctx, s.userName)
	if err != nil {
		return err
	}

	go func() {
		if err := s.channel.Open(ctx, self); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("live channel unavailable", zap.Error(err))
		}
	}()

	if err := s.room.SetIdentity(ctx, self); err != nil {
		return err
	}
	if s.counterpart != "" {
		if err := s.OpenByName(ctx, s.counterpart); err != nil {
			s.logger.Warn("open default conversation", zap.String("counterpart", s.counterpart), zap.Error(err))
		}
	}
	return nil
}

// OpenByName opens the conversation with the user called name.
func (s *Session) OpenByName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("open: empty name")
	}
	other, err := s.backend.ResolveIdentity(ctx, name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	if other.ID == s.room.Self().ID {
		return ErrSelfConversation
	}
	return s.room.Enter(ctx, other.ID)
}

// OpenKey opens a conversation listed in the inbox.
func (s *Session) OpenKey(ctx context.Context, key string) error {
	return s.room.EnterKey(ctx, key)
}

// Leave closes the active conversation.
func (s *Session) Leave(ctx context.Context) {
	s.room.Leave(ctx)
}

// Send sends body in the active conversation.
func (s *Session) Send(ctx context.Context, body string) error {
	_, err := s.room.Send(ctx, body)
	return err
}

// Resend retries a message that was not sent.
func (s *Session) Resend(ctx context.Context, id string) error {
	return s.room.Resend(ctx, id)
}

// Keystroke records composer input: it drives the typing signal and counts
// as attention.
func (s *Session) Keystroke() {
	s.typing.InputActivity()
	s.receipts.NotifyInteraction()
}

// Attention records scrolling, clicks and other activity in the thread.
func (s *Session) Attention() {
	s.receipts.NotifyInteraction()
}

// Focus and Blur follow the visibility of the thread view.
func (s *Session) Focus() { s.receipts.Focus() }

func (s *Session) Blur() { s.receipts.Blur() }

// Self returns the local identity, zero until Connect resolves it.
func (s *Session) Self() chat.Identity { return s.room.Self() }

// ActiveKey returns the open conversation key.
func (s *Session) ActiveKey() string { return s.room.Current() }

// Messages returns the visible list of the open conversation.
func (s *Session) Messages() []chat.Message { return s.engine.Messages() }

// Conversations returns the inbox, most recent first.
func (s *Session) Conversations() []chat.Conversation { return s.inbox.List() }

// Conversation returns the inbox entry for key.
func (s *Session) Conversation(key string) (chat.Conversation, bool) { return s.inbox.Get(key) }

// RemoteTyping returns the counterpart typing state.
func (s *Session) RemoteTyping() typing.Remote { return s.typing.RemoteTyping() }

// State returns the live channel state.
func (s *Session) State() status.State { return s.machine.Current() }

// Subscribe forwards to the client bus.
func (s *Session) Subscribe(prefix string, buf int) (<-chan bus.Event, func()) {
	return s.bus.Subscribe(prefix, buf)
}

// Close stops the signaling components and the live channel.
func (s *Session) Close() error {
	s.typing.Stop()
	s.receipts.Stop()
	s.room.Stop()
	return s.channel.Close()
}
