package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/storechat/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpSection is a titled group of key hints.
type HelpSection struct {
	Title string
	Hints []ui.MenuHint
}

// HelpView lists key bindings and commands.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates the help page.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)
	return &HelpView{TextView: tv, theme: theme}
}

// Name implements ui.Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements ui.Component.
func (hv *HelpView) Hints() []ui.MenuHint { return nil }

// SetSections replaces the help text.
func (hv *HelpView) SetSections(sections []HelpSection) {
	hv.Clear()
	_, _ = fmt.Fprint(hv, hv.render(sections))
	hv.ScrollToBeginning()
}

func (hv *HelpView) render(sections []HelpSection) string {
	kc := ui.Tag(hv.theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.Title)
		for _, h := range s.Hints {
			fmt.Fprintf(&b, "  [%s]%-12s[-] %s\n", kc, tview.Escape(h.Key), h.Description)
		}
	}
	return b.String()
}
