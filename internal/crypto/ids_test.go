package crypto

import (
	"strings"
	"testing"
)

func TestNewUUIDv7IsTimeOrdered(t *testing.T) {
	a := NewUUIDv7()
	b := NewUUIDv7()
	if a.Version() != 7 {
		t.Fatalf("expected version 7, got %d", a.Version())
	}
	if a.String() >= b.String() {
		t.Fatalf("expected %s < %s", a, b)
	}
}

func TestNewGuestID(t *testing.T) {
	id := NewGuestID()
	if !strings.HasPrefix(id, GuestPrefix) {
		t.Fatalf("expected guest prefix, got %q", id)
	}
	if len(id) != len(GuestPrefix)+26 {
		t.Fatalf("expected a ULID after the prefix, got %q", id)
	}
	if NewGuestID() == id {
		t.Fatal("expected distinct guest ids")
	}
}
