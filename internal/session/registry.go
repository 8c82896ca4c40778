package session

import (
	"context"
	"sync"
	"time"

	"guessing_game/internal/logger"

	"github.com/google/uuid"
)

// Registry holds the controllers of live sessions, one per connected wallet tab.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration
	build    func(id string) *Controller
	now      func() time.Time
}

type entry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// NewRegistry creates a registry; build makes a fresh controller for a new session id.
func NewRegistry(ttl time.Duration, build func(id string) *Controller) *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		build:    build,
		now:      time.Now,
	}
}

// Create starts a new, disconnected session
func (r *Registry) Create() *Controller {
	id := uuid.NewString()
	ctrl := r.build(id)

	r.mu.Lock()
	r.sessions[id] = &entry{ctrl: ctrl, lastSeen: r.now()}
	n := len(r.sessions)
	r.mu.Unlock()

	activeSessions.Set(float64(n))
	return ctrl
}

// Get returns the session and marks it as used
func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.ctrl, true
}

// Remove drops a session
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	activeSessions.Set(float64(n))
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StartCleanup evicts idle sessions every interval until ctx is done.
func (r *Registry) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.cleanupExpired()
			}
		}
	}()
}

func (r *Registry) cleanupExpired() int {
	r.mu.Lock()
	now := r.now()
	removed := 0
	for id, e := range r.sessions {
		// a session with a play in flight is kept until the play settles
		if e.ctrl.Busy() {
			continue
		}
		if now.Sub(e.lastSeen) > r.ttl {
			delete(r.sessions, id)
			removed++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	activeSessions.Set(float64(n))
	if removed > 0 {
		logger.Info("cleaned up expired sessions", "removed", removed, "remaining", n)
	}
	return removed
}
