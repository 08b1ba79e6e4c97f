package sync

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/matheus3301/storechat/internal/bus"
	"github.com/matheus3301/storechat/internal/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	self   = chat.Identity{ID: "u1", Name: "ana"}
	seller = chat.Identity{ID: "s1", Name: "loja"}
	t0     = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

const key = "u1-s1"

func newTestEngine(t *testing.T) (*Engine, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(t0)
	e := NewEngine(Options{Clock: mock})
	e.Reset(key, self)
	return e, mock
}

func record(id string, author chat.Identity, body string, at time.Time) chat.Record {
	return chat.Record{ID: id, ConversationKey: key, AuthorID: author.ID, AuthorName: author.Name, Body: body, CreatedAt: at}
}

func live(id string, author chat.Identity, body string, at time.Time) chat.Message {
	return chat.Message{ID: id, ConversationKey: key, AuthorID: author.ID, AuthorName: author.Name, Body: body, Timestamp: at}
}

func bodies(msgs []chat.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Body
	}
	return out
}

func TestInstallBaselineStatuses(t *testing.T) {
	e, _ := newTestEngine(t)

	read := record("p2", self, "read one", t0.Add(2*time.Second))
	read.ReadAt = t0.Add(time.Minute)
	ok := e.InstallBaseline(key, []chat.Record{
		record("p3", self, "unread one", t0.Add(3*time.Second)),
		record("p1", seller, "hello", t0.Add(time.Second)),
		read,
	})
	require.True(t, ok)

	msgs := e.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"hello", "read one", "unread one"}, bodies(msgs))
	assert.Equal(t, chat.StatusNone, msgs[0].Status)
	assert.Equal(t, chat.StatusRead, msgs[1].Status)
	assert.Equal(t, chat.StatusDelivered, msgs[2].Status)
}

func TestInstallBaselineFallsBackToRoomHistory(t *testing.T) {
	e, _ := newTestEngine(t)

	e.AddRoomHistory(key, []chat.Message{
		live("l1", seller, "still there?", t0),
		live("l2", self, "yes", t0.Add(time.Second)),
	})
	require.True(t, e.InstallBaseline(key, nil))

	msgs := e.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.StatusDelivered, msgs[1].Status)
}

func TestRoomHistoryAfterEmptyBaseline(t *testing.T) {
	e, _ := newTestEngine(t)

	require.True(t, e.InstallBaseline(key, nil))
	e.AddRoomHistory(key, []chat.Message{live("l1", seller, "late join ack", t0)})

	assert.Equal(t, []string{"late join ack"}, bodies(e.Messages()))
}

func TestRoomHistoryIgnoredWhenBaselinePresent(t *testing.T) {
	e, _ := newTestEngine(t)

	require.True(t, e.InstallBaseline(key, []chat.Record{record("p1", seller, "hi", t0)}))
	e.AddRoomHistory(key, []chat.Message{live("l1", seller, "hi", t0)})

	assert.Len(t, e.Messages(), 1)
}

func TestIngestLiveIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, nil))

	m := live("l1", seller, "do you ship?", t0)
	assert.True(t, e.IngestLive(m))
	once := e.Messages()

	assert.False(t, e.IngestLive(m))
	assert.Equal(t, once, e.Messages())
	assert.Equal(t, chat.StatusDelivered, once[0].Status)
}

func TestIngestLiveKeepsOrder(t *testing.T) {
	e, _ := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, []chat.Record{
		record("p1", seller, "b", t0.Add(2*time.Second)),
		record("p2", seller, "d", t0.Add(4*time.Second)),
	}))

	e.IngestLive(live("l3", seller, "e", t0.Add(5*time.Second)))
	e.IngestLive(live("l1", seller, "a", t0.Add(time.Second)))
	e.IngestLive(live("l2", seller, "c", t0.Add(3*time.Second)))

	msgs := e.Messages()
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, bodies(msgs))
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp), "list out of order at %d", i)
	}
}

func TestIngestLiveOtherConversation(t *testing.T) {
	e, _ := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, nil))

	m := live("l1", seller, "wrong room", t0)
	m.ConversationKey = "u1-s2"
	assert.False(t, e.IngestLive(m))
	assert.Empty(t, e.Messages())
}

func TestOwnEchoSuppressed(t *testing.T) {
	e, _ := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, nil))

	id := e.AppendLocal("hello")
	require.NotEmpty(t, id)
	e.MarkSent(id)

	assert.False(t, e.IngestLive(live("echo-1", self, "hello", t0.Add(2*time.Second))))

	msgs := e.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, chat.StatusSent, msgs[0].Status)
}

func TestOwnEchoAfterReconcileMatchesByAuthorID(t *testing.T) {
	e, mock := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, nil))

	id := e.AppendLocal("same words")
	e.MarkSent(id)
	require.True(t, e.ReconcileLocal(id, record("p1", self, "same words", t0)))

	// Far outside the tolerance window, but the persisted author id matches.
	mock.Add(time.Minute)
	assert.False(t, e.IngestLive(live("echo-1", self, "same words", mock.Now())))
	assert.Len(t, e.Messages(), 1)
}

func TestOwnMessageOutsideToleranceIsKept(t *testing.T) {
	e, _ := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, nil))

	e.AppendLocal("ok")
	other := live("l9", chat.Identity{Name: "ana"}, "ok", t0.Add(30*time.Second))
	assert.True(t, e.IngestLive(other))
	assert.Len(t, e.Messages(), 2)
}

func TestResentEchoOutsideToleranceSuppressed(t *testing.T) {
	e, mock := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, nil))

	id := e.AppendLocal("hello")
	// The first attempt failed; the retry goes out much later.
	mock.Add(30 * time.Second)
	e.MarkSent(id)

	assert.False(t, e.IngestLive(live("echo-1", self, "hello", mock.Now())))
	require.True(t, e.ReconcileLocal(id, record("p1", self, "hello", mock.Now())))

	msgs := e.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "p1", msgs[0].ID)
	assert.True(t, msgs[0].Timestamp.Equal(t0))
}

func TestReconcilePreservesTimestamp(t *testing.T) {
	e, mock := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, nil))

	id := e.AppendLocal("x")
	e.MarkSent(id)
	mock.Add(5 * time.Second)
	require.True(t, e.ReconcileLocal(id, record("p1", self, "x", mock.Now())))

	msgs := e.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "p1", msgs[0].ID)
	assert.Equal(t, "u1", msgs[0].AuthorID)
	assert.True(t, msgs[0].Timestamp.Equal(t0))
	assert.Equal(t, chat.StatusDelivered, msgs[0].Status)
	assert.False(t, msgs[0].IsTemp())
}

func TestReconcileFindsSentEntryByBody(t *testing.T) {
	e, _ := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, nil))

	id := e.AppendLocal("where is my order")
	e.MarkSent(id)

	require.True(t, e.ReconcileLocal("temp-unknown", record("p7", self, "where is my order", t0)))
	msgs := e.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "p7", msgs[0].ID)
}

func TestReconcileFoldsIntoExistingPersistedEntry(t *testing.T) {
	e, _ := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, nil))

	id := e.AppendLocal("dup")
	e.MarkSent(id)
	// A reload brought the persisted copy in before the persist call returned.
	require.True(t, e.BeginReload(key))
	require.True(t, e.InstallBaseline(key, []chat.Record{record("p1", self, "dup", t0)}))
	require.Len(t, e.Messages(), 1)

	assert.False(t, e.ReconcileLocal(id, record("p1", self, "dup", t0)))
	assert.Len(t, e.Messages(), 1)
}

func TestReconcileNoMatch(t *testing.T) {
	e, _ := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, nil))
	assert.False(t, e.ReconcileLocal("temp-1-x", record("p1", self, "nothing", t0)))
}

func TestApplyReadReceiptMonotonic(t *testing.T) {
	e, mock := newTestEngine(t)

	read := record("p1", self, "already read", t0.Add(-2*time.Minute))
	read.ReadAt = t0.Add(-time.Minute)
	require.True(t, e.InstallBaseline(key, []chat.Record{
		read,
		record("p2", self, "delivered", t0.Add(-time.Minute)),
		record("p3", seller, "theirs", t0.Add(-30*time.Second)),
	}))
	notSent := e.AppendLocal("not sent")
	mock.Add(time.Second)
	sent := e.AppendLocal("sent")
	e.MarkSent(sent)

	assert.Equal(t, 1, e.ApplyReadReceipt(key))

	got := map[string]chat.Status{}
	for _, m := range e.Messages() {
		got[m.ID] = m.Status
	}
	assert.Equal(t, chat.StatusRead, got["p1"])
	assert.Equal(t, chat.StatusRead, got["p2"])
	assert.Equal(t, chat.StatusNone, got["p3"])
	assert.Equal(t, chat.StatusNotSent, got[notSent])
	assert.Equal(t, chat.StatusSent, got[sent])

	assert.Equal(t, 0, e.ApplyReadReceipt(key))
	assert.Equal(t, 0, e.ApplyReadReceipt("u1-other"))
}

func TestRoomSwitchMidFetch(t *testing.T) {
	e, _ := newTestEngine(t)
	keyA, keyB := key, "u1-s2"

	// Fetch for A is in flight when the user switches to B.
	e.Reset(keyB, self)
	require.True(t, e.InstallBaseline(keyB, []chat.Record{
		{ID: "b1", ConversationKey: keyB, AuthorID: "s2", Body: "from B", CreatedAt: t0},
	}))

	assert.False(t, e.InstallBaseline(keyA, []chat.Record{record("a1", seller, "from A", t0)}))
	assert.Equal(t, []string{"from B"}, bodies(e.Messages()))
	assert.Equal(t, keyB, e.Key())
}

func TestLiveBeforeBaselineIsHeld(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.False(t, e.IngestLive(live("l2", seller, "newer", t0.Add(10*time.Second))))
	assert.Empty(t, e.Messages())

	require.True(t, e.InstallBaseline(key, []chat.Record{record("p1", seller, "older", t0)}))
	assert.Equal(t, []string{"older", "newer"}, bodies(e.Messages()))
}

func TestReconnectReloadFillsGap(t *testing.T) {
	e, mock := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, []chat.Record{
		record("p1", seller, "one", t0),
		record("p2", self, "two", t0.Add(time.Second)),
	}))

	// Channel was down while three messages were persisted.
	missed := []chat.Record{
		record("p1", seller, "one", t0),
		record("p2", self, "two", t0.Add(time.Second)),
		record("p3", seller, "three", t0.Add(2*time.Second)),
		record("p4", seller, "four", t0.Add(3*time.Second)),
		record("p5", seller, "five", t0.Add(4*time.Second)),
	}

	require.True(t, e.BeginReload(key))
	mock.Add(5 * time.Second)
	// The live copy of "five" arrives after rejoin, before the fetch returns.
	assert.False(t, e.IngestLive(live("live-5", seller, "five", t0.Add(4*time.Second))))
	require.True(t, e.InstallBaseline(key, missed))

	assert.Equal(t, []string{"one", "two", "three", "four", "five"}, bodies(e.Messages()))
}

func TestFailedReloadKeepsVisibleList(t *testing.T) {
	e, _ := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, []chat.Record{
		record("p1", seller, "one", t0),
		record("p2", self, "two", t0.Add(time.Second)),
		record("p3", seller, "three", t0.Add(2*time.Second)),
	}))
	require.True(t, e.IngestLive(live("l4", seller, "four", t0.Add(3*time.Second))))

	require.True(t, e.BeginReload(key))
	// Rejoin delivered a message the client missed while offline.
	e.AddRoomHistory(key, []chat.Message{
		live("l3", seller, "three", t0.Add(2*time.Second)),
		live("l5", seller, "five", t0.Add(4*time.Second)),
	})
	assert.False(t, e.IngestLive(live("l6", seller, "six", t0.Add(5*time.Second))))

	require.True(t, e.KeepBaseline(key))
	assert.Equal(t, []string{"one", "two", "three", "four", "five", "six"}, bodies(e.Messages()))

	// Live ingestion resumes.
	assert.True(t, e.IngestLive(live("l7", seller, "seven", t0.Add(6*time.Second))))
}

func TestFailedFirstLoadUsesRoomHistory(t *testing.T) {
	e, _ := newTestEngine(t)
	e.AddRoomHistory(key, []chat.Message{live("l1", seller, "cached", t0)})

	require.True(t, e.KeepBaseline(key))
	assert.Equal(t, []string{"cached"}, bodies(e.Messages()))
	assert.False(t, e.KeepBaseline("u1-other"))
}

func TestReinstallKeepsUnpersistedLocal(t *testing.T) {
	e, _ := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, nil))

	id := e.AppendLocal("pending")
	require.True(t, e.BeginReload(key))
	require.True(t, e.InstallBaseline(key, []chat.Record{record("p1", seller, "hi", t0.Add(-time.Second))}))

	m, ok := e.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, chat.StatusNotSent, m.Status)
	assert.Len(t, e.Messages(), 2)
}

func TestResetReplacesList(t *testing.T) {
	e, _ := newTestEngine(t)
	require.True(t, e.InstallBaseline(key, []chat.Record{record("p1", seller, "hi", t0)}))

	e.Reset("u1-s2", self)
	assert.Empty(t, e.Messages())
	assert.Equal(t, "u1-s2", e.Key())
}

func TestAppendLocalWithoutConversation(t *testing.T) {
	e := NewEngine(Options{})
	assert.Equal(t, "", e.AppendLocal("nobody here"))
}

func TestEngineNotifies(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("chat.", 10)
	defer unsub()

	e := NewEngine(Options{Bus: b})
	e.Reset(key, self)
	require.True(t, e.InstallBaseline(key, nil))
	e.IngestLive(live("l1", seller, "hey", t0))

	seen := 0
	for {
		select {
		case evt := <-ch:
			assert.Equal(t, bus.KindMessagesChanged, evt.Kind)
			assert.Equal(t, key, evt.Payload)
			seen++
		case <-time.After(100 * time.Millisecond):
			assert.GreaterOrEqual(t, seen, 2)
			return
		}
	}
}
