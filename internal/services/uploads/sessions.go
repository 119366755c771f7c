package uploads

import (
	"sync"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
)

// SessionStore keeps in-flight upload sessions keyed by admin id. Callers hold
// the per-admin lock for the whole read-modify-write of a session.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]model.UploadSession
	locks    map[int64]*sync.Mutex
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]model.UploadSession),
		locks:    make(map[int64]*sync.Mutex),
	}
}

func (s *SessionStore) Lock(adminID int64) func() {
	s.mu.Lock()
	keyLock, ok := s.locks[adminID]
	if !ok {
		keyLock = &sync.Mutex{}
		s.locks[adminID] = keyLock
	}
	s.mu.Unlock()

	keyLock.Lock()
	return keyLock.Unlock
}

func (s *SessionStore) Get(adminID int64) (model.UploadSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[adminID]
	if !ok {
		return model.UploadSession{}, false
	}
	return session.Clone(), true
}

func (s *SessionStore) Put(session model.UploadSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.AdminID] = session.Clone()
}

func (s *SessionStore) Delete(adminID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, adminID)
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
