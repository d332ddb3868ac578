package state

import (
	"testing"
)

func TestAdvanceIsMonotonic(t *testing.T) {
	t.Parallel()
	s := New()

	if !s.Advance("alice", 100) {
		t.Fatal("first advance refused")
	}
	if cur, ok := s.Cursor("alice"); !ok || cur != 100 {
		t.Fatalf("cursor = %d (ok=%v), want 100", cur, ok)
	}

	// Equal and older ids must be refused and leave the cursor alone.
	if s.Advance("alice", 100) {
		t.Fatal("advance to equal id accepted")
	}
	if s.Advance("alice", 99) {
		t.Fatal("advance to older id accepted")
	}
	if cur, _ := s.Cursor("alice"); cur != 100 {
		t.Fatalf("cursor moved to %d after refused advances", cur)
	}

	if !s.Advance("alice", 101) {
		t.Fatal("forward advance refused")
	}
}

func TestAdvanceRejectsZero(t *testing.T) {
	t.Parallel()
	s := New()
	if s.Advance("alice", 0) {
		t.Fatal("zero id accepted")
	}
	if s.Dirty() {
		t.Fatal("state dirty after refused advance")
	}
}

func TestIdentityCache(t *testing.T) {
	t.Parallel()
	s := New()

	if _, ok := s.Identity("bob"); ok {
		t.Fatal("identity hit on empty state")
	}
	s.SetIdentity("bob", "42")
	id, ok := s.Identity("bob")
	if !ok || id != "42" {
		t.Fatalf("identity = %q (ok=%v), want 42", id, ok)
	}
	if !s.Dirty() {
		t.Fatal("state not dirty after caching identity")
	}
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	t.Parallel()
	s := New()
	s.SetIdentity("alice", "1001")
	s.Advance("alice", 1844674407370955161) // near-uint64 id survives intact
	s.SetIdentity("bob", "1002")

	b, err := encode(s)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	got, err := decode(b)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if id, _ := got.Identity("alice"); id != "1001" {
		t.Fatalf("alice id = %q", id)
	}
	if cur, _ := got.Cursor("alice"); cur != 1844674407370955161 {
		t.Fatalf("alice cursor = %d", cur)
	}
	if id, _ := got.Identity("bob"); id != "1002" {
		t.Fatalf("bob id = %q", id)
	}
	if _, ok := got.Cursor("bob"); ok {
		t.Fatal("bob cursor set without any delivery")
	}
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()
	if _, err := decode([]byte(`{"users": [`)); err == nil {
		t.Fatal("expected error for malformed document")
	}
	// Empty object is fine: absent users map becomes empty state.
	s, err := decode([]byte(`{}`))
	if err != nil {
		t.Fatalf("decode({}) error: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("decode({}).Len() = %d", s.Len())
	}
}
