package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 128
)

var (
	errConnClosed = errors.New("connection closed")
	errBufferFull = errors.New("connection buffer exceeded")
)

// Connection is one client socket. Outbound frames go through a buffered
// queue drained by a single writer.
type Connection struct {
	ID string

	ws     *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
	logger *zap.Logger

	mu       sync.RWMutex
	userID   string
	userName string
}

func newConnection(ws *websocket.Conn, logger *zap.Logger) *Connection {
	id := uuid.NewString()
	return &Connection{
		ID:     id,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
		logger: logger.With(zap.String("session", id)),
	}
}

// UserID returns the identity announced on this connection, or "".
func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// UserName returns the announced display name.
func (c *Connection) UserName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userName
}

func (c *Connection) identify(id, name string) {
	c.mu.Lock()
	c.userID, c.userName = id, name
	c.mu.Unlock()
}

func (c *Connection) start() {
	go c.writeLoop()
}

// Send enqueues payload. A slow client whose buffer is full is disconnected.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	select {
	case <-c.closed:
		return errConnClosed
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.StatusGoingAway, "send buffer full")
		return errBufferFull
	}
}

// Close terminates the connection once.
func (c *Connection) Close(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.closed)
		go func() {
			_ = c.ws.Close(code, reason)
		}()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				c.Close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.ws.Ping(ctx)
			cancel()
			if err != nil {
				c.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}

func (c *Connection) write(payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	return c.ws.Write(ctx, websocket.MessageText, payload)
}
