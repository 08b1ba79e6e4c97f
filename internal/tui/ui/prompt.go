package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode is what the prompt line was opened for.
type PromptMode int

const (
	// PromptCommand reads a colon command such as "open loja".
	PromptCommand PromptMode = iota
	// PromptFilter narrows the conversation list by counterpart name.
	PromptFilter
)

type promptStyle struct {
	label, title, placeholder string
}

var promptStyles = map[PromptMode]promptStyle{
	PromptCommand: {":", " Command ", "open <name> | resend | leave | help | quit"},
	PromptFilter:  {"/", " Filter ", "counterpart name"},
}

// Prompt is the one-line input shown over the menu for commands and the
// conversation filter. Submitted text is trimmed; blank input cancels.
type Prompt struct {
	*tview.InputField
	mode     PromptMode
	onSubmit func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates a hidden prompt.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)
	input.SetPlaceholderTextColor(theme.TypingColor)

	p := &Prompt{InputField: input}
	input.SetDoneFunc(p.done)
	return p
}

func (p *Prompt) done(key tcell.Key) {
	text := strings.TrimSpace(p.GetText())
	p.SetText("")
	if key == tcell.KeyEnter && text != "" {
		if p.onSubmit != nil {
			p.onSubmit(p.mode, text)
		}
		return
	}
	if (key == tcell.KeyEnter || key == tcell.KeyEscape) && p.onCancel != nil {
		p.onCancel()
	}
}

// SetOnSubmit sets the callback for non-blank input.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnCancel sets the callback run on Esc or a blank Enter.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Activate clears the input and dresses it for mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.SetText("")
	style := promptStyles[mode]
	p.SetLabel(style.label)
	p.SetTitle(style.title)
	p.SetPlaceholder(style.placeholder)
}

// Mode returns what the prompt was last opened for.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}
