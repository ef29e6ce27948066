package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/reportpull/sfauth/pkg/logging"
)

// Registry maps execution-context identity to a live session handle. It is
// the only component allowed to create handles, so two near-simultaneous
// first-use calls on one context cannot race to create two sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Handle
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Handle),
	}
}

// Ensure returns the live handle for contextID, creating one when none
// exists, the stored one is closed, or its recorded owner no longer matches.
// Stale handles are closed best-effort before being replaced.
func (r *Registry) Ensure(contextID string, pool PoolConfig) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.sessions[contextID]; ok {
		if !h.Closed() && h.ContextID() == contextID {
			return h
		}
		if err := h.Close(); err != nil {
			logging.Debug("SessionRegistry", "Error closing stale session for %s: %v", contextID, err)
		}
		logging.Debug("SessionRegistry", "Recreating session for context %s", contextID)
	}

	h := newHandle(contextID, pool)
	r.sessions[contextID] = h
	logging.Debug("SessionRegistry", "Created session for context %s (pool %d total, %d per host)",
		contextID, h.pool.MaxConns, h.pool.MaxConnsPerHost)
	return h
}

// Get returns the tracked handle for contextID without creating one.
func (r *Registry) Get(contextID string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.sessions[contextID]
	return h, ok
}

// Remove closes and forgets the handle for contextID. Unknown contexts are a
// no-op.
func (r *Registry) Remove(contextID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.sessions[contextID]
	if !ok {
		return nil
	}
	delete(r.sessions, contextID)
	return h.Close()
}

// CloseAll tears down every tracked session, collecting errors rather than
// stopping at the first.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for contextID, h := range r.sessions {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("context %s: %w", contextID, err))
		}
	}
	n := len(r.sessions)
	r.sessions = make(map[string]*Handle)

	logging.Debug("SessionRegistry", "Closed %d sessions", n)
	return errors.Join(errs...)
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
