// Package config assembles and validates the credential configuration for a
// single logical service account.
//
// Sources are merged in fixed precedence: built-in defaults, then
// config.yaml in the user config directory (~/.config/sfauth), then a .env
// file in the working directory, then process environment variables.
//
// The resulting Config is an immutable value: it is passed by value into the
// credential store, the token exchanger, and the flows at construction time,
// so no component can observe a mid-run credential change. Reconfiguration
// means building and wiring a new Config.
//
// Two enum choices are validated up front rather than inferred per request:
// the auth method (browser vs jwt) and the client-auth variant (pkce vs
// pkce_with_secret). The latter exists because connected apps differ on the
// "Require Secret for Web Server Flow" setting, and the failure mode of
// guessing wrong is an opaque invalid_client from the token endpoint.
package config
