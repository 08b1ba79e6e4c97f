package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/storechat/internal/chat"
	"github.com/matheus3301/storechat/internal/tui/ui"
	"github.com/matheus3301/storechat/internal/typing"
	"github.com/rivo/tview"
)

// MessageThread shows the active conversation, the counterpart's typing
// indicator and the composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	typing   *tview.TextView
	composer *tview.InputField
	name     string

	onSend      func(text string)
	onKeystroke func()
	onShown     func()
	onHidden    func()
}

// NewMessageThread creates the thread page.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitleColor(theme.TitleColor)

	typingLine := tview.NewTextView().SetDynamicColors(true)
	typingLine.SetBackgroundColor(theme.BgColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(typingLine, 1, 0, false).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		typing:   typingLine,
		composer: composer,
	}
	mt.SetName("")

	composer.SetChangedFunc(func(text string) {
		if text != "" && mt.onKeystroke != nil {
			mt.onKeystroke()
		}
	})
	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		text := strings.TrimSpace(composer.GetText())
		if text == "" {
			return
		}
		composer.SetText("")
		mt.onSend(text)
	})
	return mt
}

// Name implements ui.Component.
func (mt *MessageThread) Name() string {
	if mt.name != "" {
		return mt.name
	}
	return "Messages"
}

// Hints implements ui.Component.
func (mt *MessageThread) Hints() []ui.MenuHint { return nil }

// Shown implements ui.Attention.
func (mt *MessageThread) Shown() {
	if mt.onShown != nil {
		mt.onShown()
	}
}

// Hidden implements ui.Attention.
func (mt *MessageThread) Hidden() {
	if mt.onHidden != nil {
		mt.onHidden()
	}
}

// SetName sets the counterpart name shown in the title.
func (mt *MessageThread) SetName(name string) {
	mt.name = name
	title := " Messages "
	if name != "" {
		title = fmt.Sprintf(" %s ", clean(name))
	}
	mt.messages.SetTitle(title)
}

// SetOnSend sets the callback for a submitted message.
func (mt *MessageThread) SetOnSend(fn func(text string)) { mt.onSend = fn }

// SetOnKeystroke sets the callback for each edit of the composer.
func (mt *MessageThread) SetOnKeystroke(fn func()) { mt.onKeystroke = fn }

// SetOnVisibility sets the callbacks run when the page comes to the front
// and when it leaves.
func (mt *MessageThread) SetOnVisibility(shown, hidden func()) {
	mt.onShown = shown
	mt.onHidden = hidden
}

// Update redraws msgs. Messages by self carry their delivery marker.
func (mt *MessageThread) Update(msgs []chat.Message, self chat.Identity) {
	_, _, _, height := mt.messages.GetInnerRect()
	row, _ := mt.messages.GetScrollOffset()
	atEnd := row+height >= strings.Count(mt.messages.GetText(false), "\n")

	mt.messages.Clear()
	_, _ = fmt.Fprint(mt.messages, mt.render(msgs, self, time.Now()))
	if atEnd {
		mt.messages.ScrollToEnd()
	}
}

func (mt *MessageThread) render(msgs []chat.Message, self chat.Identity, now time.Time) string {
	if len(msgs) == 0 {
		return "[::d]No messages yet.[-:-:-]\n"
	}
	var b strings.Builder
	for _, m := range msgs {
		own := isOwn(m, self)
		author, color := m.AuthorName, mt.theme.PeerAuthorColor
		if own {
			author, color = "You", mt.theme.OwnAuthorColor
		}
		if author == "" {
			author = m.AuthorID
		}
		fmt.Fprintf(&b, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]", ui.Tag(color), clean(author), formatTimestamp(m.Timestamp, now))
		if own {
			b.WriteString(" " + mt.statusMarker(m.Status))
		}
		fmt.Fprintf(&b, "\n%s\n\n", clean(m.Body))
	}
	return b.String()
}

func (mt *MessageThread) statusMarker(s chat.Status) string {
	switch s {
	case chat.StatusNotSent:
		return fmt.Sprintf("[%s]! not sent, r to retry[-]", ui.Tag(mt.theme.NotSentColor))
	case chat.StatusSent:
		return "✓"
	case chat.StatusDelivered:
		return "✓✓"
	case chat.StatusRead:
		return fmt.Sprintf("[%s]✓✓[-]", ui.Tag(mt.theme.ReadColor))
	default:
		return ""
	}
}

// SetTyping shows or hides the counterpart's typing indicator.
func (mt *MessageThread) SetTyping(r typing.Remote) {
	mt.typing.Clear()
	if !r.Typing {
		return
	}
	name := r.Name
	if name == "" {
		name = "Someone"
	}
	_, _ = fmt.Fprintf(mt.typing, " [%s::i]%s is typing...[-:-:-]", ui.Tag(mt.theme.TypingColor), clean(name))
}

// ClearComposer empties the input.
func (mt *MessageThread) ClearComposer() { mt.composer.SetText("") }

// Messages returns the message pane, for focus management.
func (mt *MessageThread) Messages() *tview.TextView { return mt.messages }

// Composer returns the composer, for focus management.
func (mt *MessageThread) Composer() *tview.InputField { return mt.composer }

func isOwn(m chat.Message, self chat.Identity) bool {
	if m.AuthorID != "" && self.ID != "" {
		return m.AuthorID == self.ID
	}
	return m.AuthorName != "" && m.AuthorName == self.Name
}
