// Package auth implements the credential lifecycle for the Salesforce
// connected app: interactive Authorization-Code-with-PKCE sign-in, the
// non-interactive JWT-bearer flow, token refresh, persistence, and the cached
// fast path API callers read from.
//
// # Architecture
//
// The package is organized around one Manager per configured service:
//   - Manager decides validity, refreshes, re-authenticates, and persists.
//     It implements oauth2.TokenSource.
//   - Exchanger performs the three grant exchanges against the canonical
//     token endpoint (never a vanity instance domain).
//   - BrowserFlow binds a one-shot localhost CallbackServer, sends the user's
//     browser to the authorization endpoint, and trades the returned code
//     plus PKCE verifier for tokens.
//   - JWTFlow mints a fresh RS256 assertion through AssertionSigner and
//     exchanges it. No refresh token exists on this path.
//   - CredentialStore persists records in the OS keychain with a
//     restricted-permission file fallback; StoreWatcher notices external
//     logins and logouts.
//
// # Validity
//
// A record is valid while now < expires_at - 5 minutes. The buffer keeps a
// token from being handed out moments before it expires mid-request.
//
// # Concurrency
//
// Concurrent GetValidToken calls on one Manager collapse into a single
// network operation; the losers block on and share the winner's outcome.
//
// # Usage
//
//	mgr, err := auth.NewManager(cfg)
//	if err != nil {
//	    return err
//	}
//	rec, err := mgr.GetValidToken(ctx)
//
// Token values, consumer secrets, authorization codes, and signed assertions
// are never written to the log at any level.
package auth
