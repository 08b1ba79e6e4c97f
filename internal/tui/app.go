// Package tui is the terminal front end of a chat session.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/storechat/internal/bus"
	"github.com/matheus3301/storechat/internal/chat"
	"github.com/matheus3301/storechat/internal/status"
	"github.com/matheus3301/storechat/internal/tui/keys"
	"github.com/matheus3301/storechat/internal/tui/ui"
	"github.com/matheus3301/storechat/internal/tui/views"
	"github.com/matheus3301/storechat/internal/typing"
	"github.com/rivo/tview"
)

const (
	pageList   = "list"
	pageThread = "thread"
	pageHelp   = "help"
)

// Session is what the TUI drives.
type Session interface {
	Self() chat.Identity
	ActiveKey() string
	Messages() []chat.Message
	Conversations() []chat.Conversation
	Conversation(key string) (chat.Conversation, bool)
	RemoteTyping() typing.Remote
	State() status.State
	Subscribe(prefix string, buf int) (<-chan bus.Event, func())

	OpenByName(ctx context.Context, name string) error
	OpenKey(ctx context.Context, key string) error
	Leave(ctx context.Context)
	Send(ctx context.Context, body string) error
	Resend(ctx context.Context, id string) error
	Keystroke()
	Attention()
	Focus()
	Blur()
}

// App is the TUI application shell.
type App struct {
	app      *tview.Application
	session  Session
	theme    *ui.Theme
	registry *keys.Registry
	flash    *ui.FlashModel

	pages     *ui.Pages
	crumbs    *ui.Crumbs
	menu      *ui.Menu
	flashBar  *ui.FlashBar
	prompt    *ui.Prompt
	statusBar *views.StatusBar
	list      *views.ConversationList
	thread    *views.MessageThread
	help      *views.HelpView
	body      *tview.Flex

	promptOpen bool
	opened     bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp builds the TUI over s.
func NewApp(s Session) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()
	a := &App{
		app:       tview.NewApplication(),
		session:   s,
		theme:     theme,
		registry:  keys.NewRegistry(),
		flash:     ui.NewFlashModel(),
		pages:     ui.NewPages(),
		crumbs:    ui.NewCrumbs(theme),
		menu:      ui.NewMenu(theme),
		flashBar:  ui.NewFlashBar(theme),
		prompt:    ui.NewPrompt(theme),
		statusBar: views.NewStatusBar(theme),
		list:      views.NewConversationList(theme),
		thread:    views.NewMessageThread(theme),
		help:      views.NewHelpView(theme),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.Add(keys.Global, &keys.Action{
		Key: tcell.KeyRune, Rune: ':', Description: "Command",
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})
	a.registry.Add(keys.Global, &keys.Action{
		Key: tcell.KeyRune, Rune: '?', Description: "Help",
		Handler: func() { a.pages.Push(pageHelp) },
	})
	a.registry.Add(keys.Global, &keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "Quit",
		Handler: a.Stop,
	})

	a.registry.Add(pageList, &keys.Action{
		Key: tcell.KeyEnter, Description: "Open",
		Handler: func() {
			if key := a.list.SelectedKey(); key != "" {
				a.openKey(key)
			}
		},
	})
	a.registry.Add(pageList, &keys.Action{
		Key: tcell.KeyRune, Rune: '/', Description: "Filter",
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})

	a.registry.Add(pageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Description: "Compose",
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.Add(pageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "Retry",
		Handler: a.resendLast,
	})
	a.registry.Add(pageThread, &keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "Back",
		Handler: a.back,
	})
	a.registry.Add(pageThread, &keys.Action{
		Key: tcell.KeyEscape, Label: "Esc", Description: "Back",
		Handler: a.back, Hidden: true,
	})
	a.registry.Add(pageHelp, &keys.Action{
		Key: tcell.KeyEscape, Label: "Esc", Description: "Back",
		Handler: a.back,
	})

	sections := []views.HelpSection{
		{Title: "Conversations", Hints: a.registry.Hints(pageList)},
		{Title: "Thread", Hints: a.registry.Hints(pageThread)},
	}
	cmds := views.HelpSection{Title: "Commands"}
	for _, c := range commandHelp {
		cmds.Hints = append(cmds.Hints, ui.MenuHint{Key: c[0], Description: c[1]})
	}
	a.help.SetSections(append(sections, cmds))
}

func (a *App) setupCallbacks() {
	a.thread.SetOnSend(func(text string) {
		go func() {
			if err := a.session.Send(a.ctx, text); err != nil {
				a.showError(err)
			}
		}()
	})
	a.thread.SetOnKeystroke(a.session.Keystroke)
	a.thread.SetOnVisibility(a.session.Focus, a.session.Blur)

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptFilter {
			a.list.SetFilter(text)
			return
		}
		a.runCommand(ParseCommand(text))
	})
	a.prompt.SetOnCancel(func() {
		if a.prompt.Mode() == ui.PromptFilter {
			a.list.SetFilter("")
		}
		a.hidePrompt()
	})

	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(stack)
		a.menu.Update(a.registry.Hints(a.pages.Current()))
		a.focusPage()
	})
}

func (a *App) setupLayout() {
	a.pages.Add(pageList, a.list, a.list)
	a.pages.Add(pageThread, a.thread, a.thread)
	a.pages.Add(pageHelp, a.help, a.help)

	header := tview.NewFlex().
		AddItem(a.crumbs, 0, 1, false).
		AddItem(a.menu, 0, 2, false)

	a.body = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 1, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)
	a.app.SetRoot(a.body, true)

	a.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		page := a.pages.Current()
		if page == pageThread {
			a.session.Attention()
		}
		if a.promptOpen {
			return ev
		}
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			if ev.Key() == tcell.KeyEscape {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			return ev
		}
		if a.registry.Handle(page, ev) {
			return nil
		}
		return ev
	})
}

func (a *App) focusPage() {
	switch a.pages.Current() {
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageHelp:
		a.app.SetFocus(a.help)
	default:
		a.app.SetFocus(a.list)
	}
}

func (a *App) back() {
	a.pages.Pop()
}

func (a *App) showPrompt(mode ui.PromptMode) {
	if a.promptOpen || (mode == ui.PromptFilter && a.pages.Current() != pageList) {
		return
	}
	a.promptOpen = true
	a.prompt.Activate(mode)
	a.body.AddItem(a.prompt, 3, 0, true)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	if !a.promptOpen {
		return
	}
	a.promptOpen = false
	a.body.RemoveItem(a.prompt)
	a.focusPage()
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "open", "o":
		if cmd.Args == "" {
			a.showError(errors.New("usage: :open <name>"))
			return
		}
		a.openName(cmd.Args)
	case "resend":
		a.resendLast()
	case "leave":
		go a.session.Leave(a.ctx)
		a.pages.Reset(pageList)
	case "help", "h":
		a.pages.Push(pageHelp)
	case "quit", "q":
		a.Stop()
	default:
		a.flash.Warn("unknown command: " + cmd.Name)
		a.flashBar.Update(a.flash.Current())
	}
}

func (a *App) openKey(key string) {
	name := key
	if conv, ok := a.session.Conversation(key); ok && conv.CounterpartName != "" {
		name = conv.CounterpartName
	}
	a.showThread(name)
	go func() {
		if err := a.session.OpenKey(a.ctx, key); err != nil {
			a.showError(err)
		}
	}()
}

func (a *App) openName(name string) {
	go func() {
		if err := a.session.OpenByName(a.ctx, name); err != nil {
			a.showError(err)
			return
		}
		a.app.QueueUpdateDraw(func() { a.showThread(name) })
	}()
}

func (a *App) showThread(name string) {
	a.opened = true
	a.thread.SetName(name)
	a.thread.ClearComposer()
	a.thread.SetTyping(typing.Remote{})
	if a.pages.Current() == pageThread {
		a.crumbs.Update(a.pages.Stack())
		return
	}
	a.pages.Reset(pageList)
	a.pages.Push(pageThread)
}

func (a *App) resendLast() {
	id, ok := lastUnsent(a.session.Messages())
	if !ok {
		a.flash.Info("nothing to retry")
		a.flashBar.Update(a.flash.Current())
		return
	}
	go func() {
		if err := a.session.Resend(a.ctx, id); err != nil {
			a.showError(err)
		}
	}()
}

func (a *App) showError(err error) {
	a.flash.Err(err)
	a.app.QueueUpdateDraw(func() { a.flashBar.Update(a.flash.Current()) })
}

// Run shows the conversation list and blocks until the user quits.
func (a *App) Run() error {
	a.statusBar.SetUser(a.session.Self().Name)
	a.statusBar.SetState(a.session.State())
	a.list.Update(a.session.Conversations(), a.session.ActiveKey())
	a.pages.Reset(pageList)

	go a.watch()
	return a.app.Run()
}

func (a *App) watch() {
	events, unsub := a.session.Subscribe("", 256)
	defer unsub()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt := <-events:
			a.handle(evt)
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				a.flashBar.Update(a.flash.Current())
				a.statusBar.SetState(a.session.State())
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handle(evt bus.Event) {
	switch evt.Kind {
	case bus.KindMessagesChanged:
		msgs, self, key := a.session.Messages(), a.session.Self(), a.session.ActiveKey()
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetUser(self.Name)
			a.thread.Update(msgs, self)
			if !a.opened && key != "" {
				name := key
				if conv, ok := a.session.Conversation(key); ok && conv.CounterpartName != "" {
					name = conv.CounterpartName
				}
				a.showThread(name)
			}
		})
	case bus.KindConversationUpdated:
		convs, key := a.session.Conversations(), a.session.ActiveKey()
		a.app.QueueUpdateDraw(func() {
			a.list.Update(convs, key)
			if conv, ok := a.session.Conversation(key); ok && conv.CounterpartName != "" && a.pages.Current() == pageThread {
				a.thread.SetName(conv.CounterpartName)
				a.crumbs.Update(a.pages.Stack())
			}
		})
	case bus.KindTypingChanged:
		remote := a.session.RemoteTyping()
		a.app.QueueUpdateDraw(func() { a.thread.SetTyping(remote) })
	case bus.KindStatusChanged:
		state := a.session.State()
		a.app.QueueUpdateDraw(func() { a.statusBar.SetState(state) })
	case bus.KindPersistFailed:
		a.flash.Warn("message delivered but not saved")
		a.app.QueueUpdateDraw(func() { a.flashBar.Update(a.flash.Current()) })
	}
}

// Stop ends the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
