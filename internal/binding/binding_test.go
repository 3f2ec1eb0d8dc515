package binding

import "testing"

type fakeHandle struct {
	cancelled int
}

func (f *fakeHandle) Cancel() { f.cancelled++ }

func TestCommitAppliesCurrentToken(t *testing.T) {
	var s Slot
	tok := s.Begin()

	applied := false
	if !s.Commit(tok, func() { applied = true }) {
		t.Fatalf("commit with current token must apply")
	}
	if !applied {
		t.Fatalf("apply func did not run")
	}
}

func TestStaleResultIsDropped(t *testing.T) {
	var s Slot
	tokA := s.Begin()
	// slot moves on to new content before A's result arrives
	tokB := s.Begin()

	applied := false
	if s.Commit(tokA, func() { applied = true }) {
		t.Fatalf("superseded token must not apply")
	}
	if applied {
		t.Fatalf("stale result mutated the slot")
	}

	// the current binding still works
	if !s.Commit(tokB, nil) {
		t.Fatalf("current token must still apply")
	}
}

func TestBeginCancelsPreviousHandle(t *testing.T) {
	var s Slot
	tok := s.Begin()
	h := &fakeHandle{}
	s.Attach(tok, h)

	s.Begin()
	if h.cancelled != 1 {
		t.Fatalf("previous handle cancelled %d times, want 1", h.cancelled)
	}
}

func TestAttachWithStaleTokenCancelsImmediately(t *testing.T) {
	var s Slot
	tok := s.Begin()
	s.Begin()

	h := &fakeHandle{}
	s.Attach(tok, h)
	if h.cancelled != 1 {
		t.Fatalf("stale attach cancelled %d times, want 1", h.cancelled)
	}
}

func TestResetInvalidatesEverything(t *testing.T) {
	var s Slot
	tok := s.Begin()
	h := &fakeHandle{}
	s.Attach(tok, h)

	s.Reset()
	if h.cancelled != 1 {
		t.Fatalf("reset did not cancel the pending handle")
	}
	if s.Commit(tok, nil) {
		t.Fatalf("token must be invalid after reset")
	}
}

func TestCommitAfterResetWithEmptyToken(t *testing.T) {
	var s Slot
	s.Reset()
	if s.Commit("", nil) {
		t.Fatalf("empty token must never apply")
	}
}
