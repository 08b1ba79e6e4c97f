package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/storechat/internal/tui/ui"
	"github.com/stretchr/testify/assert"
)

func TestPageBindingShadowsGlobal(t *testing.T) {
	r := NewRegistry()
	var ran []string
	r.Add(Global, &Action{Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Handler: func() { ran = append(ran, "quit") }})
	r.Add("thread", &Action{Key: tcell.KeyRune, Rune: 'q', Description: "Back", Handler: func() { ran = append(ran, "back") }})

	assert.True(t, r.HandleKey("thread", tcell.KeyRune, 'q'))
	assert.True(t, r.HandleKey("list", tcell.KeyRune, 'q'))
	assert.Equal(t, []string{"back", "quit"}, ran)

	assert.False(t, r.HandleKey("list", tcell.KeyRune, 'x'))
}

func TestHintsKeepOrder(t *testing.T) {
	r := NewRegistry()
	r.Add(Global, &Action{Key: tcell.KeyRune, Rune: ':', Description: "Command", Handler: func() {}})
	r.Add("list", &Action{Key: tcell.KeyEnter, Description: "Open", Handler: func() {}})
	r.Add("list", &Action{Key: tcell.KeyRune, Rune: 'x', Description: "Secret", Hidden: true, Handler: func() {}})
	r.Add("list", &Action{Key: tcell.KeyRune, Rune: '/', Label: "/", Description: "Filter", Handler: func() {}})

	assert.Equal(t, []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
	}, r.Hints("list"))
}
