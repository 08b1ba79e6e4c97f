package main

import (
	"testing"

	"github.com/matheus3301/storechat/internal/config"
)

func TestHealthURL(t *testing.T) {
	tests := []struct {
		channel string
		want    string
	}{
		{"ws://127.0.0.1:7411/ws", "http://127.0.0.1:7411/healthz"},
		{"wss://chat.example.com/ws?v=1", "https://chat.example.com/healthz"},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.Server.ChannelURL = tt.channel
		got, err := healthURL(cfg)
		if err != nil {
			t.Fatalf("healthURL(%q): %v", tt.channel, err)
		}
		if got != tt.want {
			t.Errorf("healthURL(%q) = %q, want %q", tt.channel, got, tt.want)
		}
	}
}
