// Package oauth provides the protocol-level OAuth 2.0 primitives shared by
// the sfauth credential core.
//
// This package is provider-agnostic: it knows the wire shapes of the token
// endpoint and the PKCE computation, but nothing about canonical login
// hosts, grant orchestration, or persistence. Those live in internal/auth.
//
// # Core Components
//
//   - PKCEChallenge: verifier/challenge generation per RFC 7636 (S256)
//   - GenerateState: CSRF nonce for the local callback listener
//   - TokenResponse / ErrorResponse: token endpoint wire types
//   - Redacted: wrapper keeping secrets out of logs and dumps
//
// # Usage
//
//	pkce, err := oauth.GeneratePKCE()
//	state, err := oauth.GenerateState()
//
//	// ... run the authorization flow, POST the exchange ...
//
//	var resp oauth.TokenResponse
//	if err := json.Unmarshal(body, &resp); err != nil { ... }
//	ttl := resp.ExpirySeconds() // defaults applied
package oauth
