// Package hub is the chatd side of the live channel: it accepts client
// sockets, tracks rooms and fans frames out to room members.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/matheus3301/storechat/internal/logging"
	"github.com/matheus3301/storechat/internal/store"
	"github.com/matheus3301/storechat/internal/wire"
	"go.uber.org/zap"
)

// DefaultJoinHistory is how many recent messages a room.joined ack carries.
const DefaultJoinHistory = 50

const readLimit = 1 << 20

// Directory is the store surface the hub reads.
type Directory interface {
	UpsertUser(name string) (*store.User, error)
	GetConversation(key, viewerID string) (*store.Conversation, error)
	ListMessages(key string, limit int) ([]store.Message, error)
	Participants(key string) ([]string, error)
}

// Hub serves the live channel endpoint.
type Hub struct {
	router      *Router
	dir         Directory
	logger      *zap.Logger
	joinHistory int
	now         func() time.Time
}

// New creates a hub over dir.
func New(router *Router, dir Directory, joinHistory int, logger *zap.Logger) *Hub {
	if joinHistory <= 0 {
		joinHistory = DefaultJoinHistory
	}
	return &Hub{
		router:      router,
		dir:         dir,
		logger:      logging.OrNop(logger),
		joinHistory: joinHistory,
		now:         time.Now,
	}
}

// Register mounts the channel and health endpoints on r.
func (h *Hub) Register(r gin.IRouter) {
	r.GET("/ws", h.Handle)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Handle upgrades the request and processes frames until the client leaves.
func (h *Hub) Handle(c *gin.Context) {
	ws, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		// Accept already wrote the response.
		h.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(readLimit)

	conn := newConnection(ws, h.logger)
	conn.start()
	defer func() {
		h.router.Detach(conn)
		conn.Close(websocket.StatusNormalClosure, "session closed")
	}()

	ctx := c.Request.Context()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if !errors.Is(err, context.Canceled) {
					conn.logger.Debug("read ended", zap.Error(err))
				}
			}
			return
		}

		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.replyError(conn, "bad_request", "invalid frame")
			continue
		}
		h.dispatch(conn, env)
	}
}

func (h *Hub) dispatch(conn *Connection, env wire.Envelope) {
	if env.Type == wire.TypeIdentityJoin {
		h.handleIdentity(conn, env)
		return
	}
	if conn.UserID() == "" {
		h.replyError(conn, "identity_required", "send identity.join first")
		return
	}

	switch env.Type {
	case wire.TypeRoomJoin:
		h.handleJoin(conn, env)
	case wire.TypeRoomLeave:
		var room wire.Room
		if err := env.Decode(&room); err != nil || room.Key == "" {
			h.replyError(conn, "bad_request", "conversationKey is required")
			return
		}
		h.router.Leave(room.Key, conn)
	case wire.TypeMessageSend:
		h.handleMessage(conn, env)
	case wire.TypeTypingStart, wire.TypeTypingStop:
		h.handleTyping(conn, env)
	case wire.TypeMessagesRead:
		h.handleRead(conn, env)
	default:
		h.replyError(conn, "unsupported_type", "unknown frame type "+env.Type)
	}
}

func (h *Hub) handleIdentity(conn *Connection, env wire.Envelope) {
	var id wire.Identity
	if err := env.Decode(&id); err != nil || strings.TrimSpace(id.Name) == "" {
		h.replyError(conn, "bad_request", "identity name is required")
		return
	}
	user, err := h.dir.UpsertUser(strings.TrimSpace(id.Name))
	if err != nil {
		h.logger.Error("upsert user", zap.String("name", id.Name), zap.Error(err))
		h.replyError(conn, "internal_error", "identity unavailable")
		return
	}
	if id.ID != "" && id.ID != user.ID {
		h.replyError(conn, "identity_mismatch", "id does not belong to "+user.Name)
		return
	}

	if prev := conn.UserID(); prev != "" && prev != user.ID {
		h.router.Detach(conn)
	}
	conn.identify(user.ID, user.Name)
	h.router.Attach(conn)
	conn.logger.Info("identity joined", zap.String("user", user.ID), zap.String("name", user.Name))

	h.reply(conn, wire.TypeIdentityJoined, wire.Identity{ID: user.ID, Name: user.Name})
}

func (h *Hub) handleJoin(conn *Connection, env wire.Envelope) {
	var room wire.Room
	if err := env.Decode(&room); err != nil || room.Key == "" {
		h.replyError(conn, "bad_request", "conversationKey is required")
		return
	}
	h.router.Join(room.Key, conn)

	ack := wire.RoomJoined{Key: room.Key}
	if conv, err := h.dir.GetConversation(room.Key, conn.UserID()); err == nil {
		ack.CounterpartName = conv.CounterpartName
	} else if !errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("load conversation", zap.String("key", room.Key), zap.Error(err))
	}

	msgs, err := h.dir.ListMessages(room.Key, h.joinHistory)
	if err != nil {
		h.logger.Warn("load join history", zap.String("key", room.Key), zap.Error(err))
	}
	for _, m := range msgs {
		ack.History = append(ack.History, wire.Message{
			ID:         m.ID,
			Key:        m.ConversationKey,
			AuthorID:   m.AuthorID,
			AuthorName: m.AuthorName,
			Body:       m.Body,
			Timestamp:  time.UnixMilli(m.CreatedAt).UTC(),
		})
	}
	h.reply(conn, wire.TypeRoomJoined, ack)
}

// handleMessage stamps a live copy with its own id and the server time. The
// durable copy is written through the backend by the sender.
func (h *Hub) handleMessage(conn *Connection, env wire.Envelope) {
	var in wire.Send
	if err := env.Decode(&in); err != nil || in.Key == "" {
		h.replyError(conn, "bad_request", "conversationKey is required")
		return
	}
	if strings.TrimSpace(in.Body) == "" {
		h.replyError(conn, "bad_request", "body is empty")
		return
	}

	out := wire.Message{
		ID:         uuid.NewString(),
		Key:        in.Key,
		AuthorID:   conn.UserID(),
		AuthorName: conn.UserName(),
		Body:       in.Body,
		Timestamp:  h.now().UTC(),
	}
	payload, err := wire.Encode(wire.TypeMessageReceived, out)
	if err != nil {
		h.replyError(conn, "internal_error", "failed to encode message")
		return
	}

	delivered := h.router.Broadcast(in.Key, payload, "")
	if !h.router.InRoom(in.Key, conn.UserID()) {
		_ = conn.Send(payload)
	}

	participants, err := h.dir.Participants(in.Key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("list participants", zap.String("key", in.Key), zap.Error(err))
	}
	notified := 0
	for _, id := range participants {
		if id == conn.UserID() || h.router.InRoom(in.Key, id) {
			continue
		}
		if h.router.NotifyUser(id, payload) {
			notified++
		}
	}
	h.logger.Debug("message relayed",
		zap.String("key", in.Key),
		zap.String("id", out.ID),
		zap.Int("room", delivered),
		zap.Int("notified", notified))
}

func (h *Hub) handleTyping(conn *Connection, env wire.Envelope) {
	var room wire.Room
	if err := env.Decode(&room); err != nil || room.Key == "" {
		h.replyError(conn, "bad_request", "conversationKey is required")
		return
	}
	payload, err := wire.Encode(wire.TypeTyping, wire.Typing{
		Key:        room.Key,
		AuthorID:   conn.UserID(),
		AuthorName: conn.UserName(),
		IsTyping:   env.Type == wire.TypeTypingStart,
	})
	if err != nil {
		return
	}
	h.router.Broadcast(room.Key, payload, conn.UserID())
}

func (h *Hub) handleRead(conn *Connection, env wire.Envelope) {
	var r wire.Read
	if err := env.Decode(&r); err != nil || r.Key == "" {
		h.replyError(conn, "bad_request", "conversationKey is required")
		return
	}
	payload, err := wire.Encode(wire.TypeMessagesRead, wire.Read{Key: r.Key, ReaderID: conn.UserID()})
	if err != nil {
		return
	}
	h.router.Broadcast(r.Key, payload, conn.UserID())
}

func (h *Hub) reply(conn *Connection, typ string, payload any) {
	data, err := wire.Encode(typ, payload)
	if err != nil {
		h.logger.Error("encode frame", zap.String("type", typ), zap.Error(err))
		return
	}
	_ = conn.Send(data)
}

func (h *Hub) replyError(conn *Connection, code, message string) {
	h.reply(conn, wire.TypeError, wire.Error{Code: code, Message: message})
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.router.Close()
}
