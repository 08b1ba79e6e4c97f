package tui

import (
	"testing"

	"github.com/matheus3301/storechat/internal/chat"
	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"open loja", Command{Name: "open", Args: "loja"}},
		{"  OPEN   Loja da Ana ", Command{Name: "open", Args: "Loja da Ana"}},
		{":resend", Command{Name: "resend"}},
		{"", Command{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCommand(tt.in), tt.in)
	}
}

func TestLastUnsent(t *testing.T) {
	msgs := []chat.Message{
		{ID: "temp-1-a", Status: chat.StatusNotSent},
		{ID: "m2", Status: chat.StatusDelivered},
		{ID: "temp-3-c", Status: chat.StatusNotSent},
		{ID: "m4", Status: chat.StatusNone},
	}
	id, ok := lastUnsent(msgs)
	assert.True(t, ok)
	assert.Equal(t, "temp-3-c", id)

	_, ok = lastUnsent(msgs[1:2])
	assert.False(t, ok)
}
