// store.go - In-memory session store with TTL expiry.

package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds live sessions keyed by ID. Sessions are transient: they expire
// after the TTL and nothing is ever written to disk.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewStore creates a session store and starts its cleanup loop.
func NewStore(ttl time.Duration) *Store {
	store := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
	go store.cleanupExpired()
	return store
}

// Create allocates a new session in the upload state.
func (st *Store) Create() *Session {
	sess := newSession(uuid.New().String())

	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[sess.ID] = sess
	return sess
}

// Get returns the session with the given ID, if it exists and has not expired.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	if time.Since(sess.lastTouched()) > st.ttl {
		return nil, false
	}
	return sess, true
}

// Delete removes a session.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Size returns the current number of live sessions (for diagnostics).
func (st *Store) Size() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// cleanupExpired removes expired sessions periodically.
func (st *Store) cleanupExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		st.mu.Lock()
		for id, sess := range st.sessions {
			if time.Since(sess.lastTouched()) > st.ttl {
				delete(st.sessions, id)
			}
		}
		st.mu.Unlock()
	}
}
