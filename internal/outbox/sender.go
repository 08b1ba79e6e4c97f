// Package outbox runs the local send path: optimistic append, live emit,
// persistence and reconciliation.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/storechat/internal/bus"
	"github.com/matheus3301/storechat/internal/chat"
	"github.com/matheus3301/storechat/internal/history"
	"github.com/matheus3301/storechat/internal/logging"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// ErrEmptyBody is returned for a blank message.
	ErrEmptyBody = errors.New("empty message body")
	// ErrNoConversation is returned when no conversation is open.
	ErrNoConversation = errors.New("no active conversation")
	// ErrUnknownMessage is returned by Resend for an id not in the list.
	ErrUnknownMessage = errors.New("unknown message")
)

// Timeline is the part of the sync engine the send path drives.
type Timeline interface {
	Key() string
	Self() chat.Identity
	AppendLocal(body string) string
	Lookup(id string) (chat.Message, bool)
	MarkSent(id string) bool
	ReconcileLocal(tempID string, rec chat.Record) bool
}

// Emitter sends a message on the live channel.
type Emitter interface {
	SendMessage(ctx context.Context, key, body string) error
}

// Persister stores a message durably.
type Persister interface {
	PersistMessage(ctx context.Context, key, authorID, body string) (chat.Record, error)
}

// Previews receives the last message of a conversation.
type Previews interface {
	Touch(key, body string, ts time.Time)
}

// Persisted is the payload of bus.KindPersisted.
type Persisted struct {
	TempID string
	ID     string
}

// PersistFailed is the payload of bus.KindPersistFailed.
type PersistFailed struct {
	TempID string
	Error  string
}

// Sender sends messages typed by the local user.
type Sender struct {
	timeline Timeline
	emitter  Emitter
	store    Persister
	previews Previews
	bus      *bus.Bus
	logger   *zap.Logger
}

// NewSender creates a sender.
func NewSender(timeline Timeline, emitter Emitter, store Persister, previews Previews, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		timeline: timeline,
		emitter:  emitter,
		store:    store,
		previews: previews,
		bus:      b,
		logger:   logging.OrNop(logger),
	}
}

// Send appends body to the active conversation and delivers it. The
// message is visible before any network call. It returns the temporary id
// and an error only when neither the channel nor the backend took it; the
// message then stays not_sent until Resend.
func (s *Sender) Send(ctx context.Context, body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	key, self := s.timeline.Key(), s.timeline.Self()
	if key == "" {
		return "", ErrNoConversation
	}
	if self.IsZero() {
		return "", history.ErrNoIdentity
	}

	id := s.timeline.AppendLocal(body)
	if m, ok := s.timeline.Lookup(id); ok && s.previews != nil {
		s.previews.Touch(key, body, m.Timestamp)
	}
	return id, s.deliver(ctx, key, self, id, body)
}

// Resend retries a not_sent message, keeping its id and timestamp.
// Messages in any other state are left alone.
func (s *Sender) Resend(ctx context.Context, id string) error {
	m, ok := s.timeline.Lookup(id)
	if !ok {
		return fmt.Errorf("resend %s: %w", id, ErrUnknownMessage)
	}
	if m.Status != chat.StatusNotSent {
		return nil
	}
	self := s.timeline.Self()
	if self.IsZero() {
		return history.ErrNoIdentity
	}
	return s.deliver(ctx, m.ConversationKey, self, id, m.Body)
}

func (s *Sender) deliver(ctx context.Context, key string, self chat.Identity, id, body string) error {
	emitErr := s.emitter.SendMessage(ctx, key, body)
	if emitErr == nil {
		s.timeline.MarkSent(id)
	} else {
		s.logger.Warn("live emit failed", zap.String("temp_id", id), zap.Error(emitErr))
	}

	rec, persistErr := s.store.PersistMessage(ctx, key, self.ID, body)
	if persistErr != nil {
		// The message stays visible at sent; the counterpart already has it.
		s.logger.Warn("persist failed", zap.String("temp_id", id), zap.String("key", key), zap.Error(persistErr))
		s.bus.Emit(bus.KindPersistFailed, PersistFailed{TempID: id, Error: persistErr.Error()})
	} else {
		if rec.ConversationKey == "" {
			rec.ConversationKey = key
		}
		s.timeline.ReconcileLocal(id, rec)
		s.logger.Info("message persisted", zap.String("temp_id", id), zap.String("id", rec.ID))
		s.bus.Emit(bus.KindPersisted, Persisted{TempID: id, ID: rec.ID})
	}

	if emitErr != nil && persistErr != nil {
		return fmt.Errorf("send %s: %w", id, multierr.Combine(emitErr, persistErr))
	}
	return nil
}
