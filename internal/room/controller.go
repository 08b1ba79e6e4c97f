// Package room sequences conversation switches and feeds live channel
// events into the sync engine.
package room

import (
	"context"
	"errors"
	"sync"

	"github.com/matheus3301/storechat/internal/bus"
	"github.com/matheus3301/storechat/internal/channel"
	"github.com/matheus3301/storechat/internal/chat"
	"github.com/matheus3301/storechat/internal/history"
	"github.com/matheus3301/storechat/internal/logging"
	chatsync "github.com/matheus3301/storechat/internal/sync"
	"github.com/matheus3301/storechat/internal/wire"
	"go.uber.org/zap"
)

// Channel is the part of the connection manager the controller uses.
type Channel interface {
	JoinRoom(ctx context.Context, key string) error
	LeaveRoom(ctx context.Context, key string) error
}

// Receipts receives attention signals.
type Receipts interface {
	NotifyInteraction()
}

// Typing is the local and remote typing state.
type Typing interface {
	Stop()
	SetRemote(key, name string, typing bool)
	ClearRemote()
}

// Sender is the local send path.
type Sender interface {
	Send(ctx context.Context, body string) (string, error)
	Resend(ctx context.Context, id string) error
}

// Deps groups the collaborators of a Controller.
type Deps struct {
	Engine   *chatsync.Engine
	Inbox    *chatsync.Inbox
	Loader   *history.Loader
	Backend  history.Backend
	Channel  Channel
	Receipts Receipts
	Typing   Typing
	Sender   Sender
	Bus      *bus.Bus
	Logger   *zap.Logger
}

type pendingEnter struct {
	key           string
	counterpartID string
}

// Controller owns the active conversation key and the local identity.
//
// Every switch bumps a generation under mu. Engine resets happen under mu
// for the current generation only, and room joins and leaves go through
// roomMu, so a transition that lost the race never touches the engine or
// the channel after a newer one.
type Controller struct {
	d      Deps
	logger *zap.Logger

	roomMu sync.Mutex

	mu       sync.Mutex
	self     chat.Identity
	key      string
	gen      int
	deferred *pendingEnter
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewController creates a room controller.
func NewController(d Deps) *Controller {
	return &Controller{d: d, logger: logging.OrNop(d.Logger)}
}

// Self returns the resolved local identity.
func (c *Controller) Self() chat.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// Current returns the active conversation key.
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// SetIdentity records the resolved local user, seeds the inbox and runs a
// room entry that was requested before the identity was known.
func (c *Controller) SetIdentity(ctx context.Context, self chat.Identity) error {
	c.mu.Lock()
	c.self = self
	pending := c.deferred
	c.deferred = nil
	c.mu.Unlock()

	c.logger.Info("identity resolved", zap.String("id", self.ID), zap.String("name", self.Name))
	if err := c.LoadInbox(ctx); err != nil {
		c.logger.Warn("conversation list unavailable", zap.Error(err))
	}

	if pending == nil {
		return nil
	}
	if pending.key == "" {
		return c.Enter(ctx, pending.counterpartID)
	}
	return c.EnterKey(ctx, pending.key)
}

// LoadInbox seeds the conversation previews from the backend.
func (c *Controller) LoadInbox(ctx context.Context) error {
	self := c.Self()
	if self.IsZero() {
		return history.ErrNoIdentity
	}
	convs, err := c.d.Backend.ListConversations(ctx, self.ID)
	if err != nil {
		return err
	}
	c.d.Inbox.Seed(convs)
	return nil
}

// Enter opens the conversation between the local user and counterpartID.
// Before the local identity is known the entry is deferred.
func (c *Controller) Enter(ctx context.Context, counterpartID string) error {
	if counterpartID == "" {
		return errors.New("enter: empty counterpart id")
	}
	c.mu.Lock()
	self := c.self
	if self.IsZero() {
		c.deferred = &pendingEnter{counterpartID: counterpartID}
		c.mu.Unlock()
		c.logger.Info("room entry deferred until identity resolves", zap.String("counterpart", counterpartID))
		return nil
	}
	c.mu.Unlock()

	return c.enter(ctx, chat.Key(self.ID, counterpartID), counterpartID)
}

// EnterKey opens an existing conversation by key, as listed in the inbox.
func (c *Controller) EnterKey(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("enter: empty conversation key")
	}
	c.mu.Lock()
	if c.self.IsZero() {
		c.deferred = &pendingEnter{key: key}
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conv, _ := c.d.Inbox.Get(key)
	return c.enter(ctx, key, conv.CounterpartID)
}

func (c *Controller) enter(ctx context.Context, key, counterpartID string) error {
	c.mu.Lock()
	old := c.key
	self := c.self
	c.key = key
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if old != "" && old != key {
		c.leaveRoom(ctx, old)
	}
	if !c.resetIfCurrent(gen, key, self) {
		c.logger.Debug("room switch superseded", zap.String("key", key))
		return nil
	}

	if counterpartID != "" {
		conv, err := c.d.Backend.EnsureConversation(ctx, key, self.ID, counterpartID)
		if err != nil {
			// The send path can still create it.
			c.logger.Warn("ensure conversation failed", zap.String("key", key), zap.Error(err))
		} else {
			c.d.Inbox.SetCounterpart(key, conv.CounterpartID, conv.CounterpartName)
		}
	}

	if !c.load(ctx, key, gen) {
		return nil
	}
	if !c.joinRoom(ctx, key, gen) {
		return nil
	}
	c.d.Receipts.NotifyInteraction()
	return nil
}

// resetIfCurrent points the engine at key when gen is still the latest
// switch.
func (c *Controller) resetIfCurrent(gen int, key string, self chat.Identity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.d.Engine.Reset(key, self)
	return true
}

// load fetches and installs the baseline for key. It returns false when
// the active conversation changed while the fetch was in flight. A failed
// fetch keeps what the engine already shows.
func (c *Controller) load(ctx context.Context, key string, gen int) bool {
	records, err := c.d.Loader.Load(ctx, key)
	if !c.isCurrent(gen) {
		c.logger.Debug("discarding history for inactive room", zap.String("key", key))
		return false
	}
	if err != nil {
		c.logger.Warn("history fetch failed, using live history", zap.String("key", key), zap.Error(err))
		return c.d.Engine.KeepBaseline(key)
	}
	return c.d.Engine.InstallBaseline(key, records)
}

// joinRoom joins key on the channel unless a newer switch happened. It
// returns false only when the switch was superseded.
func (c *Controller) joinRoom(ctx context.Context, key string, gen int) bool {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	if !c.isCurrent(gen) {
		c.logger.Debug("skipping join of inactive room", zap.String("key", key))
		return false
	}
	if err := c.d.Channel.JoinRoom(ctx, key); err != nil {
		c.logger.Warn("join room deferred", zap.String("key", key), zap.Error(err))
	}
	return true
}

// Leave closes the active conversation.
func (c *Controller) Leave(ctx context.Context) {
	c.mu.Lock()
	old := c.key
	self := c.self
	c.key = ""
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if old != "" {
		c.leaveRoom(ctx, old)
	}
	c.resetIfCurrent(gen, "", self)
}

func (c *Controller) leaveRoom(ctx context.Context, key string) {
	c.d.Typing.Stop()
	c.d.Typing.ClearRemote()
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	if err := c.d.Channel.LeaveRoom(ctx, key); err != nil && !errors.Is(err, channel.ErrNotConnected) {
		c.logger.Warn("leave room failed", zap.String("key", key), zap.Error(err))
	}
}

// Send stops the typing signal and sends body in the active conversation.
func (c *Controller) Send(ctx context.Context, body string) (string, error) {
	c.d.Typing.Stop()
	return c.d.Sender.Send(ctx, body)
}

// Resend retries a message that was not sent.
func (c *Controller) Resend(ctx context.Context, id string) error {
	return c.d.Sender.Resend(ctx, id)
}

// Refresh rejoins the active room and reinstalls its baseline, filling
// whatever was missed while the channel was down.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.Lock()
	key, gen := c.key, c.gen
	c.mu.Unlock()
	if key == "" {
		return
	}

	if !c.d.Engine.BeginReload(key) {
		return
	}
	if !c.joinRoom(ctx, key, gen) {
		return
	}
	if c.load(ctx, key, gen) {
		c.logger.Info("room refreshed", zap.String("key", key))
	}
}

func (c *Controller) isCurrent(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// Start consumes live channel and connection events until Stop.
func (c *Controller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	live, unsubLive := c.d.Bus.Subscribe(bus.LivePrefix, 256)
	conn, unsubConn := c.d.Bus.Subscribe(bus.KindConnected, 8)

	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		defer unsubLive()
		defer unsubConn()
		for {
			select {
			case evt := <-live:
				c.handleLive(evt)
			case <-conn:
				go c.Refresh(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends event consumption.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Controller) handleLive(evt bus.Event) {
	env, ok := evt.Payload.(wire.Envelope)
	if !ok {
		return
	}
	c.mu.Lock()
	key, self := c.key, c.self
	c.mu.Unlock()

	switch env.Type {
	case wire.TypeRoomJoined:
		var p wire.RoomJoined
		if err := env.Decode(&p); err != nil {
			c.logger.Warn("bad room.joined", zap.Error(err))
			return
		}
		c.d.Inbox.SetCounterpart(p.Key, "", p.CounterpartName)
		if p.Key == key {
			msgs := make([]chat.Message, 0, len(p.History))
			for _, m := range p.History {
				msgs = append(msgs, m.ToChat())
			}
			c.d.Engine.AddRoomHistory(key, msgs)
		}

	case wire.TypeMessageReceived:
		var m wire.Message
		if err := env.Decode(&m); err != nil {
			c.logger.Warn("bad message.received", zap.Error(err))
			return
		}
		c.d.Inbox.Touch(m.Key, m.Body, m.Timestamp)
		if m.Key != key {
			return
		}
		c.d.Engine.IngestLive(m.ToChat())
		if m.AuthorID != self.ID {
			c.d.Typing.ClearRemote()
			c.d.Receipts.NotifyInteraction()
		}

	case wire.TypeMessagesRead:
		var r wire.Read
		if err := env.Decode(&r); err != nil {
			c.logger.Warn("bad messages.read", zap.Error(err))
			return
		}
		if r.Key == key && r.ReaderID != self.ID {
			c.d.Engine.ApplyReadReceipt(key)
		}

	case wire.TypeTyping:
		var t wire.Typing
		if err := env.Decode(&t); err != nil {
			c.logger.Warn("bad typing", zap.Error(err))
			return
		}
		if t.AuthorID != "" && t.AuthorID == self.ID {
			return
		}
		c.d.Typing.SetRemote(t.Key, t.AuthorName, t.IsTyping)

	case wire.TypeError:
		var e wire.Error
		if err := env.Decode(&e); err != nil {
			c.logger.Warn("bad error frame", zap.Error(err))
			return
		}
		c.logger.Warn("channel error", zap.String("code", e.Code), zap.String("message", e.Message))
	}
}
