package views

import (
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/storechat/internal/chat"
	"github.com/matheus3301/storechat/internal/status"
	"github.com/matheus3301/storechat/internal/tui/ui"
	"github.com/matheus3301/storechat/internal/typing"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "tem no 38?", "tem no 38?"},
		{"skin tone", "👍\U0001F3FB", "👍"},
		{"zwj", "👩\u200d💻", "👩💻"},
		{"variation selector", "\u2764\ufe0f", "\u2764"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeForTerminal(tt.in))
		})
	}
}

func TestCleanEscapesColorTags(t *testing.T) {
	assert.Equal(t, "[red[]oi", clean("[red]oi"))
}

func TestThreadStatusMarkers(t *testing.T) {
	mt := NewMessageThread(ui.DefaultTheme())
	self := chat.Identity{ID: "u1", Name: "ana"}
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.Local)
	msgs := []chat.Message{
		{ID: "m1", AuthorID: "u1", AuthorName: "ana", Body: "oi", Timestamp: now, Status: chat.StatusRead},
		{ID: "m2", AuthorID: "s1", AuthorName: "loja", Body: "ola!", Timestamp: now, Status: chat.StatusDelivered},
		{ID: "temp-1-a", AuthorID: "u1", AuthorName: "ana", Body: "tem 38?", Timestamp: now, Status: chat.StatusNotSent},
	}

	out := mt.render(msgs, self, now)
	assert.Contains(t, out, "You")
	assert.Contains(t, out, "loja")
	assert.Contains(t, out, "not sent")
	assert.Equal(t, 1, strings.Count(out, "✓✓"), "only the own message shows a receipt")
}

func TestThreadEmpty(t *testing.T) {
	mt := NewMessageThread(ui.DefaultTheme())
	assert.Contains(t, mt.render(nil, chat.Identity{}, time.Now()), "No messages yet")
}

func TestThreadTypingLine(t *testing.T) {
	mt := NewMessageThread(ui.DefaultTheme())
	mt.SetTyping(typing.Remote{Key: "k", Name: "loja", Typing: true})
	assert.Contains(t, mt.typing.GetText(true), "loja is typing...")

	mt.SetTyping(typing.Remote{Key: "k"})
	assert.Empty(t, mt.typing.GetText(true))
}

func TestConversationListFilter(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.Update([]chat.Conversation{
		{Key: "u1-s1", CounterpartName: "loja", LastMessage: chat.Preview{Body: "tem sim!"}},
		{Key: "u1-s2", CounterpartName: "brecho", LastMessage: chat.Preview{Body: "chegou o pedido"}},
	}, "u1-s1")

	assert.Equal(t, "u1-s1", cl.KeyAt(1))
	assert.Equal(t, "u1-s2", cl.KeyAt(2))
	assert.Empty(t, cl.KeyAt(3))

	cl.SetFilter("PEDIDO")
	assert.Equal(t, "u1-s2", cl.KeyAt(1))
	assert.Empty(t, cl.KeyAt(2))
}

func TestStatusBarShowsState(t *testing.T) {
	sb := NewStatusBar(ui.DefaultTheme())
	sb.SetUser("ana")
	sb.SetState(status.Reconnecting)
	text := sb.GetText(true)
	assert.Contains(t, text, "ana")
	assert.Contains(t, text, "RECONNECTING")
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.Local)
	assert.Equal(t, "09:30", formatTimestamp(now.Add(-330*time.Minute), now))
	assert.Equal(t, "28/02", formatTimestamp(now.AddDate(0, 0, -2), now))
	assert.Empty(t, formatTimestamp(time.Time{}, now))
}
