package chat

import (
	"strings"
	"testing"
	"time"
)

func TestStatusAdvance(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want Status
	}{
		{StatusNotSent, StatusSent, StatusSent},
		{StatusSent, StatusDelivered, StatusDelivered},
		{StatusDelivered, StatusRead, StatusRead},
		{StatusRead, StatusDelivered, StatusRead},
		{StatusDelivered, StatusSent, StatusDelivered},
		{StatusSent, StatusNotSent, StatusSent},
		{StatusNone, StatusDelivered, StatusDelivered},
		{StatusRead, StatusRead, StatusRead},
	}
	for _, tt := range tests {
		if got := tt.from.Advance(tt.to); got != tt.want {
			t.Errorf("%q.Advance(%q) = %q, want %q", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNewTempID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewTempID(now)
	if !strings.HasPrefix(id, "temp-1700000000123-") {
		t.Errorf("NewTempID = %q, want prefix temp-1700000000123-", id)
	}
	if !IsTempID(id) {
		t.Errorf("IsTempID(%q) = false", id)
	}
	if IsTempID("5f1c0a3e") {
		t.Error("persisted id reported as temporary")
	}
	if NewTempID(now) == id {
		t.Error("two temp ids at the same instant collided")
	}
}

func TestKey(t *testing.T) {
	if got := Key("u1", "s9"); got != "u1-s9" {
		t.Errorf("Key = %q, want u1-s9", got)
	}
}
