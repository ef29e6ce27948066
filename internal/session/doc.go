// Package session hands out HTTP client sessions bound to the execution
// context that created them.
//
// # Ownership
//
// Every concurrent worker carries its own context identity. The Registry maps
// that identity to a Handle wrapping an http.Client with a dedicated
// connection pool. A handle never crosses contexts: Acquire rejects a foreign
// context with a BindingError instead of letting two workers interleave on
// one pool, and a closed handle is discarded rather than reused.
//
// # Staleness
//
// Ensure recreates the session whenever no entry exists, the stored handle is
// closed, or its recorded owner no longer matches the caller. Stale handles
// are closed best-effort; replacement never fails because of them.
//
// # Pooling
//
// PoolConfig carries the connector settings (total and per-host connection
// caps, keep-alive, connect/read/total timeouts). DefaultPoolConfig suits
// general traffic; SalesforcePoolConfig narrows the pool for org rate limits.
//
// # Usage
//
//	registry := session.NewRegistry()
//	defer registry.CloseAll()
//
//	handle := registry.Ensure(workerID, session.SalesforcePoolConfig())
//	client, err := handle.Acquire(workerID)
//	if err != nil {
//		return err
//	}
//	resp, err := client.Do(req)
package session
