// Package sfapi is a minimal authenticated client for probing a Salesforce
// org: version discovery, org limits, user identity, a connection test, and
// raw GETs for the interactive console.
//
// Each client is bound to one execution context and draws its HTTP session
// from the shared session registry, so concurrent workers never share a
// connection pool. Tokens come from a TokenProvider (the auth token manager);
// a 401 triggers exactly one invalidate-and-retry before the failure is
// returned to the caller.
package sfapi
