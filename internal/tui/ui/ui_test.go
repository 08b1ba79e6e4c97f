package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlashExpires(t *testing.T) {
	now := time.Unix(1700000000, 0)
	f := NewFlashModel()
	f.now = func() time.Time { return now }

	assert.Nil(t, f.Current())

	f.Err(errors.New("send failed"))
	msg := f.Current()
	require.NotNil(t, msg)
	assert.Equal(t, "send failed", msg.Text)
	assert.Equal(t, FlashErr, msg.Level)

	now = now.Add(11 * time.Second)
	assert.Nil(t, f.Current())
}

type page struct {
	name   string
	events []string
}

func (p *page) Name() string      { return p.name }
func (p *page) Hints() []MenuHint { return nil }
func (p *page) Shown()            { p.events = append(p.events, "shown") }
func (p *page) Hidden()           { p.events = append(p.events, "hidden") }

func TestPagesStackNotifiesAttention(t *testing.T) {
	list := &page{name: "Conversations"}
	thread := &page{name: "loja"}

	p := NewPages()
	var crumbs []string
	p.SetOnChange(func(stack []string) { crumbs = stack })
	p.Add("list", list, tview.NewBox())
	p.Add("thread", thread, tview.NewBox())

	p.Reset("list")
	p.Push("thread")
	assert.Equal(t, []string{"Conversations", "loja"}, crumbs)
	assert.Equal(t, "thread", p.Current())
	assert.Equal(t, []string{"shown"}, thread.events)

	assert.Equal(t, "thread", p.Pop())
	assert.Equal(t, []string{"shown", "hidden"}, thread.events)
	assert.Equal(t, []string{"shown", "hidden", "shown"}, list.events)

	assert.Empty(t, p.Pop(), "root page is never popped")
	assert.Equal(t, "list", p.Current())
}

func TestCrumbsRender(t *testing.T) {
	c := NewCrumbs(DefaultTheme())
	out := c.render([]string{"Conversations", "ana"})
	assert.Contains(t, out, " Conversations ")
	assert.Contains(t, out, ":b] ana ")
}

func TestCrumbsTruncateLongNames(t *testing.T) {
	c := NewCrumbs(DefaultTheme())
	out := c.render([]string{"Conversations", "Loja de Calcados Centro Historico"})
	assert.Contains(t, out, " Loja de Calcados Centro… ")
}

func TestMenuRender(t *testing.T) {
	m := NewMenu(DefaultTheme())
	out := m.render([]MenuHint{{Key: "r", Description: "Retry"}, {Key: "?", Description: "Help"}})
	assert.Contains(t, out, "<r>[-:-:-] Retry  ")
	assert.Contains(t, out, "<?>[-:-:-] Help")
}

func TestPromptSubmitAndCancel(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	var submitted []string
	cancels := 0
	p.SetOnSubmit(func(mode PromptMode, text string) {
		assert.Equal(t, PromptFilter, mode)
		submitted = append(submitted, text)
	})
	p.SetOnCancel(func() { cancels++ })

	p.Activate(PromptFilter)
	assert.Equal(t, "/", p.GetLabel())

	p.SetText("  loja  ")
	p.done(tcell.KeyEnter)
	assert.Equal(t, []string{"loja"}, submitted)
	assert.Empty(t, p.GetText())

	p.SetText("   ")
	p.done(tcell.KeyEnter)
	p.done(tcell.KeyEscape)
	assert.Equal(t, 2, cancels)
	assert.Len(t, submitted, 1)
}
