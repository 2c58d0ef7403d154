package sessions

import "sync"

// Session is the form state of one connection.
type Session struct {
	connID string

	mu      sync.Mutex
	formID  uint32
	pending bool
}

func newSession(connID string) *Session {
	return &Session{connID: connID}
}

// ConnID returns the ID of the connection the session belongs to.
func (s *Session) ConnID() string { return s.connID }

// CurrentFormID returns the outstanding form ID, if any.
func (s *Session) CurrentFormID() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formID, s.pending
}

// HasForm reports whether a form is outstanding.
func (s *Session) HasForm() bool {
	_, ok := s.CurrentFormID()
	return ok
}

// SetCurrentFormID records id as the outstanding form, replacing any
// previous one. It returns the replaced ID, if there was one.
func (s *Session) SetCurrentFormID(id uint32) (prev uint32, replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, replaced = s.formID, s.pending
	s.formID, s.pending = id, true
	return prev, replaced
}

// ClearCurrentFormID forgets the outstanding form. It returns false when
// nothing was outstanding.
func (s *Session) ClearCurrentFormID() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.pending
	s.formID, s.pending = 0, false
	return was
}

// Resolve clears the outstanding form if and only if it is id.
func (s *Session) Resolve(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending || s.formID != id {
		return false
	}
	s.formID, s.pending = 0, false
	return true
}
