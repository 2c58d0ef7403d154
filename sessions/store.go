package sessions

import "sync"

// Store maps connection IDs to sessions. It is safe for concurrent use and
// lookups for different connections never contend on a shared lock.
type Store struct {
	sessions sync.Map // connID -> *Session
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the session of connID, creating it if needed. It never
// returns nil.
func (s *Store) Get(connID string) *Session {
	if v, ok := s.sessions.Load(connID); ok {
		return v.(*Session)
	}
	v, _ := s.sessions.LoadOrStore(connID, newSession(connID))
	return v.(*Session)
}

// Open registers a session for a newly connected client. Opening an
// existing connection returns its current session.
func (s *Store) Open(connID string) *Session {
	return s.Get(connID)
}

// Lookup returns the session of connID without creating one.
func (s *Store) Lookup(connID string) (*Session, bool) {
	v, ok := s.sessions.Load(connID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Remove drops the session of connID and returns it, if it existed.
func (s *Store) Remove(connID string) (*Session, bool) {
	v, ok := s.sessions.LoadAndDelete(connID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Len returns the number of tracked sessions.
func (s *Store) Len() int {
	n := 0
	s.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
