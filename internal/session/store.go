package session

import (
	"errors"
	"sync"
)

// Store errors.
var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// Store holds all live sessions. It is an explicit object passed to the
// components that need it rather than a package-level registry; its own
// lifetime is the process, per-session entries are created and removed
// explicitly by the supervisor.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Add registers a session under its ID.
func (st *Store) Add(s *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[s.ID]; ok {
		return ErrSessionExists
	}
	st.sessions[s.ID] = s
	return nil
}

// Get looks up a session by ID.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Remove deletes a session entry. The caller is responsible for stopping
// the session first.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// IDs returns the IDs of all live sessions.
func (st *Store) IDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	return ids
}
