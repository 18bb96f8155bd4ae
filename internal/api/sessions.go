package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calbers/twinchat/internal/llm"
)

const (
	sessionTTL  = 2 * time.Hour
	maxSessions = 1024
)

type session struct {
	history  []llm.Message
	lastSeen time.Time
}

// sessionStore keeps per-visitor conversation histories in memory. Sessions
// are ephemeral: a restart starts every visitor fresh, which is acceptable
// for a personal site chat widget.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Get returns a copy of the session history, so a turn in flight never
// observes writes from a concurrent turn on the same session.
func (s *sessionStore) Get(id string) ([]llm.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastSeen = s.now()
	history := make([]llm.Message, len(sess.history))
	copy(history, sess.history)
	return history, true
}

// Commit replaces the session history wholesale. The turn handler returns a
// fully consistent history, so there is nothing to merge.
func (s *sessionStore) Commit(id string, history []llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &session{history: history, lastSeen: s.now()}
	s.pruneLocked()
}

// NewID mints a session identifier for a first-contact visitor.
func (s *sessionStore) NewID() string {
	return uuid.New().String()
}

func (s *sessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// pruneLocked drops expired sessions, then evicts the oldest if the store
// is still over capacity. Caller holds the lock.
func (s *sessionStore) pruneLocked() {
	cutoff := s.now().Add(-sessionTTL)
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
	for len(s.sessions) > maxSessions {
		var oldestID string
		var oldest time.Time
		for id, sess := range s.sessions {
			if oldestID == "" || sess.lastSeen.Before(oldest) {
				oldestID = id
				oldest = sess.lastSeen
			}
		}
		delete(s.sessions, oldestID)
	}
}
