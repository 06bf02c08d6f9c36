package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dvloznov/payables-dashboard/internal/domain"
	"github.com/google/uuid"
)

// Session is one interactive user session. Actions on a session are
// serialized: Do holds the session lock for the whole action, so a slow fetch
// blocks later actions of the same session only.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu    sync.Mutex
	state *State

	noticeMu sync.Mutex
	notice   Notice

	// unix nanoseconds; kept outside mu so sweeps never wait on a running action
	lastSeen atomic.Int64
	now      func() time.Time
}

// Do runs fn with exclusive access to the session state. The session counts
// as active until fn returns.
func (s *Session) Do(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.lastSeen.Store(s.now().UnixNano()) }()
	return fn(s.state)
}

// Notice is a one-shot message shown on the next page render.
type Notice struct {
	Message string
	Error   bool
}

// SetNotice stores n, replacing any pending notice.
func (s *Session) SetNotice(n Notice) {
	s.noticeMu.Lock()
	s.notice = n
	s.noticeMu.Unlock()
}

// TakeNotice returns and clears the pending notice.
func (s *Session) TakeNotice() Notice {
	s.noticeMu.Lock()
	defer s.noticeMu.Unlock()
	n := s.notice
	s.notice = Notice{}
	return n
}

// Registry owns all live sessions. It is safe for concurrent use.
// Sessions live in memory only and are lost on restart.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create starts a new session with empty state.
func (r *Registry) Create() *Session {
	now := r.now()
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		state:     NewState(),
		now:       r.now,
	}
	s.lastSeen.Store(now.UnixNano())

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	return s
}

// Get returns the session with the given id and marks it as active.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}

	s.lastSeen.Store(r.now().UnixNano())
	return s, nil
}

// Destroy ends a session and discards its state.
func (r *Registry) Destroy(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	delete(r.sessions, id)
	return nil
}

// Sweep destroys sessions idle for longer than maxIdle and returns how many
// were removed. Sessions in the middle of an action are never removed.
// A non-positive maxIdle disables sweeping.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-maxIdle).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.lastSeen.Load() >= cutoff || !s.mu.TryLock() {
			continue
		}
		delete(r.sessions, id)
		removed++
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
