package sync

import (
	"slices"
	gosync "sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/storechat/internal/bus"
	"github.com/matheus3301/storechat/internal/chat"
	"github.com/matheus3301/storechat/internal/logging"
	"go.uber.org/zap"
)

// DefaultEchoTolerance is how far apart in time an own live echo and the
// local copy of the same message may be and still be treated as one message.
const DefaultEchoTolerance = 10 * time.Second

// Options configures an Engine.
type Options struct {
	EchoTolerance time.Duration
	Clock         clock.Clock
	Bus           *bus.Bus
	Logger        *zap.Logger
}

// Engine owns the ordered, deduplicated message list of the active
// conversation. All mutation goes through its methods; the list returned by
// Messages is a copy.
//
// Live messages that arrive before the baseline for the active key is
// installed are held back and merged right after it, so they sort against
// the full history.
type Engine struct {
	mu        gosync.Mutex
	key       string
	self      chat.Identity
	messages  []chat.Message
	ready     bool
	pending   []chat.Message
	joinHist  []chat.Message
	usedJoin  bool
	reloading bool
	tolerance time.Duration
	clock     clock.Clock
	bus       *bus.Bus
	logger    *zap.Logger
}

// NewEngine creates an engine with no active conversation.
func NewEngine(opts Options) *Engine {
	if opts.EchoTolerance <= 0 {
		opts.EchoTolerance = DefaultEchoTolerance
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Engine{
		tolerance: opts.EchoTolerance,
		clock:     opts.Clock,
		bus:       opts.Bus,
		logger:    logging.OrNop(opts.Logger),
	}
}

// Reset switches the engine to key for the given local identity. The
// previous list is discarded and live ingestion is held until the next
// InstallBaseline. An empty key leaves the engine without a conversation.
func (e *Engine) Reset(key string, self chat.Identity) {
	e.mu.Lock()
	changed := e.key != key || len(e.messages) > 0
	e.key = key
	e.self = self
	e.messages = nil
	e.pending = nil
	e.joinHist = nil
	e.usedJoin = false
	e.ready = false
	e.reloading = false
	e.mu.Unlock()

	if changed {
		e.notify(key)
	}
}

// Key returns the active conversation key.
func (e *Engine) Key() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.key
}

// Self returns the local identity the engine was reset with.
func (e *Engine) Self() chat.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.self
}

// Messages returns a copy of the visible list, ascending by timestamp.
func (e *Engine) Messages() []chat.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.messages)
}

// Lookup returns the visible message with the given id.
func (e *Engine) Lookup(id string) (chat.Message, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexOf(id); i >= 0 {
		return e.messages[i], true
	}
	return chat.Message{}, false
}

// InstallBaseline replaces the visible list with the persisted history of
// key. Own messages become read when the backend recorded a read time and
// delivered otherwise; counterpart messages carry no status. An empty
// baseline falls back to the history delivered with the room join.
//
// Local messages that were never persisted survive a re-install of the same
// key unless the baseline already contains them. Returns false when key is
// no longer the active conversation and the records were discarded.
func (e *Engine) InstallBaseline(key string, records []chat.Record) bool {
	e.mu.Lock()
	if key == "" || key != e.key {
		e.mu.Unlock()
		e.logger.Debug("discarding stale baseline", zap.String("key", key))
		return false
	}

	baseline := make([]chat.Message, 0, len(records))
	for _, r := range records {
		m := chat.Message{
			ID:              r.ID,
			ConversationKey: key,
			AuthorName:      r.AuthorName,
			AuthorID:        r.AuthorID,
			Body:            r.Body,
			Timestamp:       r.CreatedAt,
		}
		if r.AuthorID != "" && r.AuthorID == e.self.ID {
			m.Status = chat.StatusDelivered
			if !r.ReadAt.IsZero() {
				m.Status = chat.StatusRead
			}
		}
		baseline = append(baseline, m)
	}

	e.usedJoin = len(baseline) == 0
	if e.usedJoin {
		baseline = append(baseline, e.joinHist...)
	}

	for _, m := range e.messages {
		if m.IsTemp() && !e.containsOwnCopy(baseline, m) {
			baseline = append(baseline, m)
		}
	}

	e.messages = baseline
	e.normalize()
	e.flushLocked()
	count := len(e.messages)
	e.mu.Unlock()

	e.logger.Info("baseline installed",
		zap.String("key", key),
		zap.Int("persisted", len(records)),
		zap.Int("visible", count),
	)
	e.notify(key)
	return true
}

// KeepBaseline completes a load of key whose history fetch failed. A
// reload keeps the visible list as it is and only merges the room join
// history and the live messages held meanwhile. A first load has nothing to
// keep and falls back to the room join history like an empty baseline.
func (e *Engine) KeepBaseline(key string) bool {
	e.mu.Lock()
	if key == "" || key != e.key {
		e.mu.Unlock()
		return false
	}
	if !e.reloading {
		e.mu.Unlock()
		return e.InstallBaseline(key, nil)
	}
	e.usedJoin = true
	for _, m := range e.joinHist {
		e.mergeLocked(m)
	}
	e.flushLocked()
	count := len(e.messages)
	e.mu.Unlock()

	e.logger.Info("history unavailable, kept visible list",
		zap.String("key", key),
		zap.Int("visible", count),
	)
	e.notify(key)
	return true
}

// flushLocked marks the list ready and merges the live messages held while
// it was loading.
func (e *Engine) flushLocked() {
	e.ready = true
	e.reloading = false
	pending := e.pending
	e.pending = nil
	for _, m := range pending {
		e.mergeLocked(m)
	}
}

// mergeLocked ingests m unless the list already holds its persisted copy.
func (e *Engine) mergeLocked(m chat.Message) bool {
	if e.containsCopy(e.messages, m) {
		return false
	}
	return e.ingestLocked(m)
}

// BeginReload holds live ingestion for key until the next InstallBaseline
// or KeepBaseline, without clearing the visible list. Used when the same
// conversation is re-fetched after the channel reconnects.
func (e *Engine) BeginReload(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if key == "" || key != e.key {
		return false
	}
	e.ready = false
	e.reloading = true
	return true
}

// AddRoomHistory records the messages the live channel delivered with the
// room join. They are the fallback baseline when the persisted fetch fails
// or comes back empty; if that already happened they are merged right away.
func (e *Engine) AddRoomHistory(key string, history []chat.Message) {
	e.mu.Lock()
	if key != e.key {
		e.mu.Unlock()
		return
	}
	e.joinHist = make([]chat.Message, 0, len(history))
	for _, m := range history {
		m.ConversationKey = key
		if e.isOwn(m) {
			m.Status = chat.StatusDelivered
		}
		e.joinHist = append(e.joinHist, m)
	}
	merge := e.ready && e.usedJoin
	if merge {
		for _, m := range e.joinHist {
			e.mergeLocked(m)
		}
	}
	e.mu.Unlock()

	if merge {
		e.notify(key)
	}
}

// AppendLocal appends a message authored by the local user with a temporary
// id and status not_sent, and returns that id. Returns "" when no
// conversation is active.
func (e *Engine) AppendLocal(body string) string {
	e.mu.Lock()
	if e.key == "" {
		e.mu.Unlock()
		return ""
	}
	now := e.clock.Now()
	id := chat.NewTempID(now)
	e.messages = append(e.messages, chat.Message{
		ID:              id,
		ConversationKey: e.key,
		AuthorName:      e.self.Name,
		Body:            body,
		Timestamp:       now,
		Status:          chat.StatusNotSent,
	})
	e.normalize()
	key := e.key
	e.mu.Unlock()

	e.notify(key)
	return id
}

// IngestLive merges a message pushed by the live channel for the active
// conversation. Duplicates by id are dropped, and so are echoes of the local
// user's own sends: an own message with the same body as an existing own
// entry that carries the same persisted author id, is sent but not yet
// persisted, or lies within the echo tolerance of it. Returns true when the
// message was added.
func (e *Engine) IngestLive(m chat.Message) bool {
	e.mu.Lock()
	if m.ConversationKey == "" || m.ConversationKey != e.key {
		e.mu.Unlock()
		return false
	}
	if !e.ready {
		e.pending = append(e.pending, m)
		e.mu.Unlock()
		return false
	}
	added := e.ingestLocked(m)
	key := e.key
	e.mu.Unlock()

	if added {
		e.notify(key)
	}
	return added
}

func (e *Engine) ingestLocked(m chat.Message) bool {
	if e.indexOf(m.ID) >= 0 {
		return false
	}
	if e.isOwn(m) && e.findEcho(m) >= 0 {
		return false
	}
	m.Status = chat.StatusDelivered
	e.messages = append(e.messages, m)
	e.normalize()
	return true
}

// findEcho returns the index of the own entry that m echoes, or -1. A
// local entry the channel accepted but the backend has not yet persisted
// matches at any distance: a resend keeps its original timestamp while the
// echo carries the time the server relayed it.
func (e *Engine) findEcho(m chat.Message) int {
	for i, existing := range e.messages {
		if !e.isOwn(existing) || existing.Body != m.Body {
			continue
		}
		if existing.AuthorID != "" && existing.AuthorID == m.AuthorID {
			return i
		}
		if existing.IsTemp() && existing.Status == chat.StatusSent {
			return i
		}
		if absDuration(existing.Timestamp.Sub(m.Timestamp)) <= e.tolerance {
			return i
		}
	}
	return -1
}

// ApplyReadReceipt advances every own message of key at delivered to read
// and returns how many changed.
func (e *Engine) ApplyReadReceipt(key string) int {
	e.mu.Lock()
	if key == "" || key != e.key {
		e.mu.Unlock()
		return 0
	}
	n := 0
	for i := range e.messages {
		m := &e.messages[i]
		if m.Status == chat.StatusDelivered && e.isOwn(*m) {
			m.Status = chat.StatusRead
			n++
		}
	}
	e.mu.Unlock()

	if n > 0 {
		e.notify(key)
	}
	return n
}

func (e *Engine) isOwn(m chat.Message) bool {
	if m.AuthorID != "" && e.self.ID != "" {
		return m.AuthorID == e.self.ID
	}
	return m.AuthorName != "" && m.AuthorName == e.self.Name
}

// containsOwnCopy reports whether list already holds the persisted form of
// the local message m.
func (e *Engine) containsOwnCopy(list []chat.Message, m chat.Message) bool {
	for _, other := range list {
		if other.IsTemp() || !e.isOwn(other) || other.Body != m.Body {
			continue
		}
		if absDuration(other.Timestamp.Sub(m.Timestamp)) <= e.tolerance {
			return true
		}
	}
	return false
}

// containsCopy reports whether list holds a persisted entry by the same
// author with the same body close to m. Live frames carry channel ids that
// differ from the persisted ones, so a message held back during a reload
// may already be part of the fresh baseline.
func (e *Engine) containsCopy(list []chat.Message, m chat.Message) bool {
	for _, other := range list {
		if other.IsTemp() || other.Body != m.Body {
			continue
		}
		sameAuthor := other.AuthorName == m.AuthorName
		if other.AuthorID != "" && m.AuthorID != "" {
			sameAuthor = other.AuthorID == m.AuthorID
		}
		if sameAuthor && absDuration(other.Timestamp.Sub(m.Timestamp)) <= e.tolerance {
			return true
		}
	}
	return false
}

func (e *Engine) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range e.messages {
		if e.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// normalize collapses entries sharing an id, keeping the most advanced
// status, and restores ascending timestamp order.
func (e *Engine) normalize() {
	seen := make(map[string]int, len(e.messages))
	out := e.messages[:0]
	for _, m := range e.messages {
		if m.ID != "" {
			if i, ok := seen[m.ID]; ok {
				out[i].Status = out[i].Status.Advance(m.Status)
				continue
			}
			seen[m.ID] = len(out)
		}
		out = append(out, m)
	}
	clear(e.messages[len(out):])
	e.messages = out
	slices.SortStableFunc(e.messages, func(a, b chat.Message) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

func (e *Engine) notify(key string) {
	e.bus.Emit(bus.KindMessagesChanged, key)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
