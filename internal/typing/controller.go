// Package typing drives the local typing signal and tracks the remote one.
package typing

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/storechat/internal/bus"
	"github.com/matheus3301/storechat/internal/logging"
	"go.uber.org/zap"
)

// DefaultIdleTimeout ends a typing burst after this long without input.
const DefaultIdleTimeout = 3 * time.Second

// Emitter sends typing start/stop on the live channel.
type Emitter interface {
	SendTyping(ctx context.Context, key string, typing bool) error
}

// Conversation exposes the active key.
type Conversation interface {
	Key() string
}

// Remote is the payload of bus.KindTypingChanged.
type Remote struct {
	Key    string
	Name   string
	Typing bool
}

// Controller is idle until the first keystroke, typing until the idle
// timer elapses or Stop is called.
type Controller struct {
	idle    time.Duration
	emitter Emitter
	conv    Conversation
	clock   clock.Clock
	bus     *bus.Bus
	logger  *zap.Logger

	mu     sync.Mutex
	typing bool
	room   string
	timer  *clock.Timer
	gen    int
	remote Remote
}

// NewController creates a typing controller.
func NewController(idle time.Duration, emitter Emitter, conv Conversation, clk clock.Clock, b *bus.Bus, logger *zap.Logger) *Controller {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Controller{
		idle:    idle,
		emitter: emitter,
		conv:    conv,
		clock:   clk,
		bus:     b,
		logger:  logging.OrNop(logger),
	}
}

// InputActivity records a keystroke in the composer.
func (c *Controller) InputActivity() {
	key := c.conv.Key()
	if key == "" {
		return
	}

	c.mu.Lock()
	var stale string
	if c.typing && c.room != key {
		stale = c.room
		c.typing = false
	}
	start := !c.typing
	if start {
		c.typing = true
		c.room = key
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.idle, func() { c.expire(gen) })
	c.mu.Unlock()

	if stale != "" {
		c.emit(stale, false)
	}
	if start {
		c.emit(key, true)
	}
}

// Stop ends the typing burst now. Called on send and on room leave.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.typing {
		c.mu.Unlock()
		return
	}
	room := c.stopLocked()
	c.mu.Unlock()

	c.emit(room, false)
}

// Typing reports whether the local user is flagged as typing.
func (c *Controller) Typing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

func (c *Controller) expire(gen int) {
	c.mu.Lock()
	if gen != c.gen || !c.typing {
		c.mu.Unlock()
		return
	}
	room := c.stopLocked()
	c.mu.Unlock()

	c.emit(room, false)
}

func (c *Controller) stopLocked() string {
	room := c.room
	c.typing = false
	c.room = ""
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return room
}

func (c *Controller) emit(key string, typing bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.emitter.SendTyping(ctx, key, typing); err != nil {
		c.logger.Debug("typing signal not sent", zap.String("key", key), zap.Bool("typing", typing), zap.Error(err))
	}
}

// SetRemote applies a typing signal from the counterpart. Signals for a
// conversation other than the active one are ignored.
func (c *Controller) SetRemote(key, name string, typing bool) {
	if key == "" || key != c.conv.Key() {
		return
	}
	c.setRemote(Remote{Key: key, Name: name, Typing: typing})
}

// ClearRemote hides the counterpart's indicator, as when their message
// arrives or the room changes.
func (c *Controller) ClearRemote() {
	c.setRemote(Remote{})
}

// RemoteTyping returns the counterpart's typing state.
func (c *Controller) RemoteTyping() Remote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

func (c *Controller) setRemote(r Remote) {
	if !r.Typing {
		r = Remote{Key: r.Key}
	}
	c.mu.Lock()
	changed := c.remote.Typing != r.Typing || c.remote.Name != r.Name
	c.remote = r
	c.mu.Unlock()

	if changed {
		c.bus.Emit(bus.KindTypingChanged, r)
	}
}
