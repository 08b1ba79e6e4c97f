// Package keys maps key events to page actions.
package keys

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/storechat/internal/tui/ui"
)

// Global is the scope checked after the active page's own bindings.
const Global = ""

// Action is one key binding.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Label       string
	Description string
	Handler     func()
	Hidden      bool
}

// Matches reports whether key, with r for rune keys, triggers the action.
func (a *Action) Matches(key tcell.Key, r rune) bool {
	if a.Key != tcell.KeyRune {
		return key == a.Key
	}
	return key == tcell.KeyRune && r == a.Rune
}

func (a *Action) label() string {
	if a.Label != "" {
		return a.Label
	}
	if a.Key == tcell.KeyRune {
		return string(a.Rune)
	}
	return tcell.KeyNames[a.Key]
}

// Registry holds bindings per page in registration order.
type Registry struct {
	scopes map[string][]*Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{scopes: make(map[string][]*Action)}
}

// Add registers an action for page, or for every page with Global.
func (r *Registry) Add(page string, a *Action) {
	r.scopes[page] = append(r.scopes[page], a)
}

// Hints lists the visible bindings of page followed by the global ones.
func (r *Registry) Hints(page string) []ui.MenuHint {
	var hints []ui.MenuHint
	for _, scope := range r.order(page) {
		for _, a := range r.scopes[scope] {
			if !a.Hidden {
				hints = append(hints, ui.MenuHint{Key: a.label(), Description: a.Description})
			}
		}
	}
	return hints
}

// Handle runs the action bound to ev on page.
func (r *Registry) Handle(page string, ev *tcell.EventKey) bool {
	return r.HandleKey(page, ev.Key(), ev.Rune())
}

// HandleKey runs the first action of page, then of the global scope, that
// matches key. It reports whether one ran.
func (r *Registry) HandleKey(page string, key tcell.Key, ch rune) bool {
	for _, scope := range r.order(page) {
		for _, a := range r.scopes[scope] {
			if a.Matches(key, ch) {
				a.Handler()
				return true
			}
		}
	}
	return false
}

func (r *Registry) order(page string) []string {
	if page == Global {
		return []string{Global}
	}
	return []string{page, Global}
}
