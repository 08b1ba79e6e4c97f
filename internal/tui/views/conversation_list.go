package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/storechat/internal/chat"
	"github.com/matheus3301/storechat/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationList is the inbox table.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	convs   []chat.Conversation
	visible []chat.Conversation
	active  string
	filter  string
}

// NewConversationList creates the inbox table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	cl := &ConversationList{Table: table, theme: theme}
	cl.render()
	return cl
}

// Name implements ui.Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// Hints implements ui.Component.
func (cl *ConversationList) Hints() []ui.MenuHint { return nil }

// Update replaces the listed conversations, keeping the selection on the
// same key when it is still visible.
func (cl *ConversationList) Update(convs []chat.Conversation, active string) {
	selected := cl.SelectedKey()
	cl.convs = convs
	cl.active = active
	cl.render()
	cl.selectKey(selected)
}

// SetFilter narrows the list to names or previews containing filter.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// Filter returns the active filter.
func (cl *ConversationList) Filter() string { return cl.filter }

func (cl *ConversationList) render() {
	cl.Clear()
	cl.visible = cl.visible[:0]

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 3},
		{" TIME", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	for _, c := range cl.convs {
		name := displayName(c)
		if !matches(cl.filter, name, c.LastMessage.Body) {
			continue
		}
		if c.Key == cl.active {
			name = "* " + name
		}
		row := len(cl.visible) + 1
		cl.visible = append(cl.visible, c)
		cl.SetCell(row, 0, tview.NewTableCell(" "+clean(name)).SetExpansion(1).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+clean(oneLine(c.LastMessage.Body))).SetExpansion(3).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(formatTimestamp(c.LastMessage.Timestamp, time.Now())).SetAlign(tview.AlignRight).SetTextColor(cl.theme.FgColor))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) /%s ", len(cl.visible), len(cl.convs), tview.Escape(cl.filter)))
		return
	}
	cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
}

// SelectedKey returns the key of the highlighted conversation.
func (cl *ConversationList) SelectedKey() string {
	row, _ := cl.GetSelection()
	return cl.KeyAt(row)
}

// KeyAt returns the key shown on table row n, 1 being the first entry.
func (cl *ConversationList) KeyAt(n int) string {
	if n < 1 || n > len(cl.visible) {
		return ""
	}
	return cl.visible[n-1].Key
}

func (cl *ConversationList) selectKey(key string) {
	for i, c := range cl.visible {
		if c.Key == key {
			cl.Select(i+1, 0)
			return
		}
	}
	if len(cl.visible) > 0 {
		cl.Select(1, 0)
	}
}

func displayName(c chat.Conversation) string {
	if c.CounterpartName != "" {
		return c.CounterpartName
	}
	if c.CounterpartID != "" {
		return c.CounterpartID
	}
	return c.Key
}

func matches(filter string, fields ...string) bool {
	if filter == "" {
		return true
	}
	filter = strings.ToLower(filter)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), filter) {
			return true
		}
	}
	return false
}

func formatTimestamp(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now = now.Local()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("02/01")
}
