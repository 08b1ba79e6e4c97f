package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/storechat/internal/status"
	"github.com/matheus3301/storechat/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar shows the local user, the live channel state and a clock.
type StatusBar struct {
	*tview.TextView
	theme *ui.Theme
	user  string
	state status.State
	now   func() time.Time
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	sb := &StatusBar{TextView: tv, theme: theme, state: status.Idle, now: time.Now}
	sb.refresh()
	return sb
}

// SetUser updates the user name.
func (sb *StatusBar) SetUser(name string) {
	sb.user = name
	sb.refresh()
}

// SetState updates the connection state.
func (sb *StatusBar) SetState(state status.State) {
	sb.state = state
	sb.refresh()
}

func (sb *StatusBar) refresh() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, sb.render())
}

func (sb *StatusBar) render() string {
	user := sb.user
	if user == "" {
		user = "-"
	}
	color := sb.theme.OfflineColor
	switch sb.state {
	case status.Connected:
		color = sb.theme.ConnectedColor
	case status.Connecting, status.Reconnecting:
		color = sb.theme.FlashWarnColor
	}
	return fmt.Sprintf(" [::b]%s[-:-:-] | [%s]%s[-] | %s",
		clean(user), ui.Tag(color), sb.state, sb.now().Format("15:04"))
}
