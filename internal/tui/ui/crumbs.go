package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// maxCrumb caps a crumb label; counterpart names can be long store names.
const maxCrumb = 24

// Crumbs shows where the user is: the conversation list first, then the
// counterpart of the open conversation, highlighted.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates an empty breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme}
}

// Update shows stack, the page in front last.
func (c *Crumbs) Update(stack []string) {
	c.SetText(c.render(stack))
}

func (c *Crumbs) render(stack []string) string {
	parts := make([]string, 0, len(stack))
	for i, name := range stack {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(stack)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] %s [-:-:-]", Tag(fg), Tag(bg), attr, tview.Escape(crumbLabel(name))))
	}
	return strings.Join(parts, " ")
}

func crumbLabel(name string) string {
	r := []rune(name)
	if len(r) <= maxCrumb {
		return name
	}
	return string(r[:maxCrumb-1]) + "…"
}
