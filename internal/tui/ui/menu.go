package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Menu is the shortcut line: the keys of the page in front (open, filter,
// compose, retry) followed by the global ones.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates an empty shortcut line.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignRight)
	tv.SetBackgroundColor(theme.BgColor)
	return &Menu{TextView: tv, theme: theme}
}

// Update replaces the shortcuts shown.
func (m *Menu) Update(hints []MenuHint) {
	m.SetText(m.render(hints))
}

func (m *Menu) render(hints []MenuHint) string {
	kc := Tag(m.theme.MenuKeyColor)
	var b strings.Builder
	for i, h := range hints {
		if i > 0 {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "[%s::b]<%s>[-:-:-] %s", kc, tview.Escape(h.Key), tview.Escape(h.Description))
	}
	return b.String()
}
