package memory

import (
	"sync"

	"trivora/internal/app"
)

// SessionStore keeps the live quiz sessions of the agent by id.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
}

func (s *SessionStore) Get(id string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Active returns a snapshot of every live session.
func (s *SessionStore) Active() []app.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make([]app.SessionState, 0, len(s.sessions))
	for _, session := range s.sessions {
		states = append(states, session.State())
	}
	return states
}
