// Package logging provides structured logging for sfauth built on the
// standard slog package.
//
// All log entries carry a subsystem identifier so the credential flows can
// be traced end to end:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("AuthFlow", "authorization URL built for port %d", port)
//	logging.Debug("TokenExchange", "posting %s grant to %s", grant, host)
//	logging.Error("CredentialStore", err, "keychain write failed, using file fallback")
//
// Subsystems in use:
//
//   - Config: configuration loading and validation
//   - CredentialStore: keychain and file persistence
//   - StoreWatcher: external credential-file change detection
//   - AuthFlow: PKCE browser flow orchestration
//   - Callback: the one-shot local redirect listener
//   - TokenExchange: grant exchanges against the token endpoint
//   - Assertion: JWT-bearer assertion signing
//   - TokenManager: lifecycle, refresh serialization, cache
//   - SessionRegistry: per-context HTTP session handling
//   - API: authenticated probe calls
//
// Token values, consumer secrets, authorization codes, and signed assertions
// are never logged. Call sites log presence, lengths, or redacted forms only.
package logging
