// Package binding solves the reusable-display-slot staleness problem: a
// slot that is rebound to new content while a fetch is pending must never
// be mutated by the superseded fetch's result. Each rebinding mints a fresh
// token; a delivery only applies when its token is still the slot's
// current one.
package binding

import (
	"sync"

	"github.com/google/uuid"
)

// Token identifies one binding of a slot. Opaque to callers.
type Token string

// Canceller is the subset of a fetch handle a slot needs in order to tear
// down a superseded request.
type Canceller interface {
	Cancel()
}

// Slot guards one reusable display position. The zero value is ready to use.
type Slot struct {
	mu     sync.Mutex
	token  Token
	handle Canceller
}

// Begin supersedes any previous binding: the prior pending handle is
// cancelled and a new token minted. Call it before issuing a fetch for the
// slot's new content.
func (s *Slot) Begin() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.handle.Cancel()
		s.handle = nil
	}
	s.token = Token(uuid.NewString())
	return s.token
}

// Attach records the pending handle for the binding identified by token so
// a later Begin or Reset can cancel it. A handle attached under a stale
// token is cancelled immediately.
func (s *Slot) Attach(token Token, h Canceller) {
	s.mu.Lock()
	if token == s.token {
		s.handle = h
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
}

// Commit runs apply only when token is still the slot's current binding.
// A stale token is dropped silently and Commit reports false.
func (s *Slot) Commit(token Token, apply func()) bool {
	s.mu.Lock()
	if token == "" || token != s.token {
		s.mu.Unlock()
		return false
	}
	s.handle = nil
	s.mu.Unlock()
	if apply != nil {
		apply()
	}
	return true
}

// Reset tears the slot down: the pending handle (if any) is cancelled and
// every outstanding token invalidated.
func (s *Slot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.handle.Cancel()
		s.handle = nil
	}
	s.token = ""
}
