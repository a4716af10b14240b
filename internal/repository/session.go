package repository

import (
	"sync"

	"github.com/google/uuid"
)

// Session holds one client session's mutable repository selection.
// Selections are explicit per-session state, never process-wide, so
// concurrent sessions against the same registry cannot interfere.
type Session struct {
	// ID identifies the session in logs
	ID string

	mu      sync.RWMutex
	current *Repository
}

// NewSession creates a session with no repository selected.
func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// SetCurrent records the session's current repository.
func (s *Session) SetCurrent(repo Repository) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &repo
}

// Current returns the selected repository, if any.
func (s *Session) Current() (Repository, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Repository{}, false
	}
	return *s.current, true
}
