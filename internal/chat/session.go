package chat

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ordermind/ordermind/pkg/common"
)

// Session is one customer conversation. A session processes turns strictly
// sequentially; mu serializes overlapping HTTP requests for the same
// context id.
type Session struct {
	ID    string
	State State
	Order *OrderContext

	// LastActive is guarded by the registry lock, not the session lock,
	// so Sweep can read it without taking every session mutex.
	LastActive time.Time

	mu sync.Mutex
}

// SessionRegistry tracks live conversations keyed by context id. Stale
// sessions are removed by the sweep job.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Acquire returns the session for id, creating one when id is empty or
// unknown. The returned session is locked; callers must Release it after the
// turn.
func (r *SessionRegistry) Acquire(id string) *Session {
	r.mu.Lock()
	session, ok := r.sessions[id]
	if !ok {
		session = &Session{
			ID:    common.UUID(),
			State: StateInit,
			Order: NewOrderContext(),
		}
		if id != "" {
			// unknown id means the session expired; reuse it so the
			// client keeps its handle
			session.ID = id
		}
		r.sessions[session.ID] = session
	}
	session.LastActive = time.Now()
	r.mu.Unlock()

	session.mu.Lock()
	return session
}

// Release unlocks a session acquired with Acquire.
func (r *SessionRegistry) Release(session *Session) {
	session.mu.Unlock()
}

// Count returns the number of live sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions idle longer than the TTL and returns how many were
// removed.
func (r *SessionRegistry) Sweep() int {
	cutoff := time.Now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int
	for id, session := range r.sessions {
		if session.LastActive.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		zap.L().Info("swept idle chat sessions", zap.Int("removed", removed))
	}
	return removed
}
