// Package channel owns the duplex live connection to chatd: dialing,
// identity announcement, reconnection and the frames clients emit.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/matheus3301/storechat/internal/bus"
	"github.com/matheus3301/storechat/internal/chat"
	"github.com/matheus3301/storechat/internal/logging"
	"github.com/matheus3301/storechat/internal/status"
	"github.com/matheus3301/storechat/internal/wire"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by every emit while the channel is down.
// The frame is dropped, not queued.
var ErrNotConnected = errors.New("channel not connected")

// ErrClosed is returned by Open after Close.
var ErrClosed = errors.New("channel closed")

// Config holds connection parameters.
type Config struct {
	URL               string
	ReconnectAttempts int
	ReconnectBackoff  time.Duration
	DialTimeout       time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectAttempts < 0 {
		c.ReconnectAttempts = 0
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = 2 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
}

// Manager is the single live connection of a client. Inbound frames are
// published on the bus as bus.LivePrefix + frame type with the
// wire.Envelope as payload.
type Manager struct {
	cfg     Config
	machine *status.Machine
	bus     *bus.Bus
	clock   clock.Clock
	logger  *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	identity wire.Identity
	room     string
	running  bool
	closed   bool
	life     context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewManager creates a manager. It does not connect until Open.
func NewManager(cfg Config, machine *status.Machine, b *bus.Bus, clk clock.Clock, logger *zap.Logger) *Manager {
	cfg.defaults()
	if clk == nil {
		clk = clock.New()
	}
	life, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:     cfg,
		machine: machine,
		bus:     b,
		clock:   clk,
		logger:  logging.OrNop(logger),
		life:    life,
		cancel:  cancel,
	}
}

// Open connects and announces identity, retrying with a fixed backoff up
// to the configured number of attempts. Once it returns nil the connection
// is kept alive in the background until Close.
func (m *Manager) Open(ctx context.Context, identity chat.Identity) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.identity = wire.Identity{ID: identity.ID, Name: identity.Name}
	m.running = true
	m.mu.Unlock()

	ctx, stop := mergeDone(ctx, m.life)
	defer stop()

	conn, err := m.establish(ctx)
	if err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return err
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.done = done
	m.mu.Unlock()
	go m.run(conn, done)
	return nil
}

// IsConnected reports whether emits will be attempted.
func (m *Manager) IsConnected() bool {
	return m.machine.IsConnected()
}

// Room returns the room joined on the current connection.
func (m *Manager) Room() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.room
}

// Close tears the connection down. A joined room is left first so the
// server can release presence immediately.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conn, room, done := m.conn, m.room, m.done
	m.conn, m.room = nil, ""
	m.mu.Unlock()

	var err error
	if conn != nil {
		if room != "" {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			if lerr := m.write(ctx, conn, wire.TypeRoomLeave, wire.Room{Key: room}); lerr != nil {
				m.logger.Debug("leave on close failed", zap.String("room", room), zap.Error(lerr))
			}
			cancel()
		}
		err = conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	m.cancel()
	if done != nil {
		<-done
	}
	m.transition(status.Disconnected)
	return err
}

// JoinRoom asks the server to add this connection to key.
func (m *Manager) JoinRoom(ctx context.Context, key string) error {
	if err := m.Send(ctx, wire.TypeRoomJoin, wire.Room{Key: key}); err != nil {
		return err
	}
	m.mu.Lock()
	m.room = key
	m.mu.Unlock()
	return nil
}

// LeaveRoom removes this connection from key.
func (m *Manager) LeaveRoom(ctx context.Context, key string) error {
	m.mu.Lock()
	if m.room == key {
		m.room = ""
	}
	m.mu.Unlock()
	return m.Send(ctx, wire.TypeRoomLeave, wire.Room{Key: key})
}

// SendMessage emits body to key. The server stamps author and time.
func (m *Manager) SendMessage(ctx context.Context, key, body string) error {
	return m.Send(ctx, wire.TypeMessageSend, wire.Send{Key: key, Body: body})
}

// SendTyping emits a typing start or stop for key.
func (m *Manager) SendTyping(ctx context.Context, key string, typing bool) error {
	typ := wire.TypeTypingStop
	if typing {
		typ = wire.TypeTypingStart
	}
	return m.Send(ctx, typ, wire.Room{Key: key})
}

// SendRead tells the room that readerID has read key.
func (m *Manager) SendRead(ctx context.Context, key, readerID string) error {
	return m.Send(ctx, wire.TypeMessagesRead, wire.Read{Key: key, ReaderID: readerID})
}

// Send emits a raw frame. Returns ErrNotConnected when the channel is down.
func (m *Manager) Send(ctx context.Context, typ string, payload any) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil || !m.machine.IsConnected() {
		m.logger.Debug("dropping frame, channel down", zap.String("type", typ))
		return ErrNotConnected
	}
	return m.write(ctx, conn, typ, payload)
}

func (m *Manager) write(ctx context.Context, conn *websocket.Conn, typ string, payload any) error {
	data, err := wire.Encode(typ, payload)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write %s: %w", typ, err)
	}
	return nil
}

// run reads from conn until it fails, then reconnects. It exits when the
// manager is closed or the retry budget is exhausted.
func (m *Manager) run(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		err := m.readLoop(conn)
		if m.isClosed() {
			_ = conn.CloseNow()
			return
		}
		m.logger.Warn("channel lost", zap.Error(err))

		m.mu.Lock()
		m.conn, m.room = nil, ""
		m.mu.Unlock()
		_ = conn.CloseNow()
		m.transition(status.Reconnecting)

		conn, err = m.establish(m.life)
		if err != nil {
			if !m.isClosed() {
				m.logger.Error("channel disconnected", zap.Error(err))
				m.bus.Emit(bus.KindDisconnected, err.Error())
			}
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			return
		}
	}
}

// establish dials until connected or out of attempts. The state machine
// moves through Connecting and Reconnecting and ends in Connected or
// Disconnected.
func (m *Manager) establish(ctx context.Context) (*websocket.Conn, error) {
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(m.cfg.ReconnectBackoff), uint64(m.cfg.ReconnectAttempts))
	attempt := 0
	for {
		attempt++
		m.transition(status.Connecting)
		conn, err := m.connect(ctx)
		if err == nil {
			m.mu.Lock()
			m.conn = conn
			m.mu.Unlock()
			m.transition(status.Connected)
			m.logger.Info("channel connected", zap.String("url", m.cfg.URL), zap.Int("attempt", attempt))
			m.bus.Emit(bus.KindConnected, attempt)
			return conn, nil
		}

		wait := policy.NextBackOff()
		if wait == backoff.Stop || ctx.Err() != nil {
			m.transition(status.Disconnected)
			return nil, fmt.Errorf("connect %s after %d attempts: %w", m.cfg.URL, attempt, err)
		}
		m.logger.Warn("channel connect failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
		m.transition(status.Reconnecting)

		select {
		case <-m.clock.After(wait):
		case <-ctx.Done():
			m.transition(status.Disconnected)
			return nil, ctx.Err()
		}
	}
}

// connect dials and completes the identity handshake.
func (m *Manager) connect(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, m.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	m.mu.Lock()
	identity := m.identity
	m.mu.Unlock()
	if err := m.write(ctx, conn, wire.TypeIdentityJoin, identity); err != nil {
		_ = conn.CloseNow()
		return nil, err
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			_ = conn.CloseNow()
			return nil, fmt.Errorf("read identity ack: %w", err)
		}
		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case wire.TypeIdentityJoined:
			return conn, nil
		case wire.TypeError:
			var e wire.Error
			_ = env.Decode(&e)
			conn.Close(websocket.StatusPolicyViolation, "identity rejected")
			return nil, fmt.Errorf("identity rejected: %s", e.Message)
		}
	}
}

func (m *Manager) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(m.life)
		if err != nil {
			return err
		}
		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			m.logger.Warn("malformed frame", zap.Error(err))
			continue
		}
		m.bus.Emit(bus.LivePrefix+env.Type, env)
	}
}

func (m *Manager) transition(to status.State) {
	if m.machine.Current() == to {
		return
	}
	if err := m.machine.Transition(to); err != nil {
		m.logger.Debug("status transition skipped", zap.Error(err))
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// mergeDone returns a context canceled when either a or b is done.
func mergeDone(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
