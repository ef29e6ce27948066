package session

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrSessionClosed indicates the handle was torn down; callers go back to the
// registry for a fresh one.
var ErrSessionClosed = errors.New("session handle closed")

// BindingError indicates a handle created under one execution context was
// offered to a different one. Sharing a session across contexts fails in ways
// the transport cannot diagnose, so the mismatch is rejected up front.
type BindingError struct {
	Want string // context that owns the handle
	Got  string // context that asked for it
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("session bound to context %s, requested by %s", e.Want, e.Got)
}

// Handle is one execution context's HTTP session: a client over a dedicated
// connection pool. A handle never moves between contexts and is discarded,
// not reused, once closed.
type Handle struct {
	mu sync.Mutex

	contextID string
	pool      PoolConfig
	createdAt time.Time

	client    *http.Client
	transport *http.Transport
	closed    bool
}

func newHandle(contextID string, pool PoolConfig) *Handle {
	pool = pool.normalized()
	transport := pool.newTransport()
	return &Handle{
		contextID: contextID,
		pool:      pool,
		createdAt: time.Now(),
		transport: transport,
		client: &http.Client{
			Transport: transport,
			Timeout:   pool.TotalTimeout,
		},
	}
}

// ContextID returns the execution context that owns this handle.
func (h *Handle) ContextID() string {
	return h.contextID
}

// Pool returns the connector configuration the handle was built with.
func (h *Handle) Pool() PoolConfig {
	return h.pool
}

// CreatedAt returns when the handle was created.
func (h *Handle) CreatedAt() time.Time {
	return h.createdAt
}

// Acquire returns the HTTP client for callers running under contextID. A
// closed handle returns ErrSessionClosed; a foreign context gets a
// BindingError.
func (h *Handle) Acquire(contextID string) (*http.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrSessionClosed
	}
	if contextID != h.contextID {
		return nil, &BindingError{Want: h.contextID, Got: contextID}
	}
	return h.client, nil
}

// Closed reports whether the handle was torn down.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close tears down the handle and drops its idle connections. Closing twice
// is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.transport.CloseIdleConnections()
	return nil
}
