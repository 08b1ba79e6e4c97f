package status

import (
	"testing"
	"time"

	"github.com/matheus3301/storechat/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Idle {
		t.Errorf("initial state = %s, want IDLE", m.Current())
	}
	if m.IsConnected() {
		t.Error("IsConnected() = true before any transition")
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
	}{
		{"connect", []State{Connecting, Connected}},
		{"lose and recover", []State{Connecting, Connected, Reconnecting, Connecting, Connected}},
		{"give up", []State{Connecting, Connected, Reconnecting, Disconnected}},
		{"close", []State{Connecting, Connected, Disconnected}},
		{"reopen after close", []State{Connecting, Connected, Disconnected, Connecting}},
		{"initial dial fails", []State{Connecting, Reconnecting, Connecting, Connected}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(nil)
			for _, s := range tt.path {
				if err := m.Transition(s); err != nil {
					t.Fatalf("Transition(%s) error = %v", s, err)
				}
			}
			if got := m.Current(); got != tt.path[len(tt.path)-1] {
				t.Errorf("Current() = %s, want %s", got, tt.path[len(tt.path)-1])
			}
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
		bad  State
	}{
		{"idle to connected", nil, Connected},
		{"idle to reconnecting", nil, Reconnecting},
		{"connected to connecting", []State{Connecting, Connected}, Connecting},
		{"disconnected to connected", []State{Disconnected}, Connected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(nil)
			for _, s := range tt.path {
				if err := m.Transition(s); err != nil {
					t.Fatalf("setup Transition(%s) error = %v", s, err)
				}
			}
			before := m.Current()
			if err := m.Transition(tt.bad); err == nil {
				t.Errorf("Transition(%s) from %s should fail", tt.bad, before)
			}
			if m.Current() != before {
				t.Errorf("state changed to %s after rejected transition", m.Current())
			}
		})
	}
}

func TestTransitionPublishesEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("channel.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindStatusChanged {
			t.Errorf("kind = %q, want %s", evt.Kind, bus.KindStatusChanged)
		}
		sc, ok := evt.Payload.(StatusChange)
		if !ok {
			t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
		}
		if sc.From != Idle || sc.To != Connecting {
			t.Errorf("payload = %+v, want IDLE->CONNECTING", sc)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for status event")
	}
}
