// Package receipt turns user attention into debounced mark-read calls.
package receipt

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/storechat/internal/chat"
	"github.com/matheus3301/storechat/internal/logging"
	"go.uber.org/zap"
)

// Conversation exposes the active key and the local identity.
type Conversation interface {
	Key() string
	Self() chat.Identity
}

// Marker persists that a reader has read a conversation.
type Marker interface {
	MarkRead(ctx context.Context, key, readerID string) (int, error)
}

// Signaler tells the counterpart that the conversation was read.
type Signaler interface {
	SendRead(ctx context.Context, key, readerID string) error
}

// Config tunes the debouncer.
type Config struct {
	QuietPeriod time.Duration
	MinInterval time.Duration
	CallTimeout time.Duration
}

type state int

const (
	stateIdle state = iota
	statePending
	stateFired
)

// Debouncer fires at most one mark-read per MinInterval, and only after
// QuietPeriod without further interaction while the view is focused.
type Debouncer struct {
	cfg    Config
	conv   Conversation
	marker Marker
	signal Signaler
	clock  clock.Clock
	logger *zap.Logger

	mu       sync.Mutex
	state    state
	focused  bool
	stopped  bool
	timer    *clock.Timer
	gen      int
	lastFire time.Time
}

// NewDebouncer creates a debouncer. The view starts focused.
func NewDebouncer(cfg Config, conv Conversation, marker Marker, signal Signaler, clk clock.Clock, logger *zap.Logger) *Debouncer {
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = time.Second
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 2 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Debouncer{
		cfg:     cfg,
		conv:    conv,
		marker:  marker,
		signal:  signal,
		clock:   clk,
		logger:  logging.OrNop(logger),
		focused: true,
	}
}

// NotifyInteraction records focus, scroll, keypress, click or message
// arrival. It schedules a firing after the quiet period, pushed back so two
// firings are never closer than MinInterval.
func (d *Debouncer) NotifyInteraction() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.focused || d.stopped {
		return
	}

	delay := d.cfg.QuietPeriod
	if !d.lastFire.IsZero() {
		if wait := d.lastFire.Add(d.cfg.MinInterval).Sub(d.clock.Now()); wait > delay {
			delay = wait
		}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.state = statePending
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(delay, func() { d.fire(gen) })
}

// Focus marks the view focused and counts as an interaction.
func (d *Debouncer) Focus() {
	d.mu.Lock()
	d.focused = true
	d.mu.Unlock()
	d.NotifyInteraction()
}

// Blur marks the view unfocused and cancels a pending firing.
func (d *Debouncer) Blur() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focused = false
	d.cancelLocked()
}

// Focused reports the focus flag.
func (d *Debouncer) Focused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focused
}

// Stop cancels any pending firing and ignores further interaction.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.cancelLocked()
}

func (d *Debouncer) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	if d.state == statePending {
		d.state = stateIdle
	}
}

func (d *Debouncer) fire(gen int) {
	d.mu.Lock()
	if gen != d.gen || d.state != statePending || !d.focused || d.stopped {
		d.mu.Unlock()
		return
	}
	d.state = stateFired
	d.timer = nil
	d.lastFire = d.clock.Now()
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.state == stateFired {
			d.state = stateIdle
		}
		d.mu.Unlock()
	}()

	key, self := d.conv.Key(), d.conv.Self()
	if key == "" || self.IsZero() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.CallTimeout)
	defer cancel()

	n, err := d.marker.MarkRead(ctx, key, self.ID)
	if err != nil {
		// Retried on the next interaction.
		d.logger.Warn("mark read failed", zap.String("key", key), zap.Error(err))
		return
	}
	d.logger.Debug("marked read", zap.String("key", key), zap.Int("count", n))

	if err := d.signal.SendRead(ctx, key, self.ID); err != nil {
		d.logger.Debug("read signal not sent", zap.String("key", key), zap.Error(err))
	}
}
