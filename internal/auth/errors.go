package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for flow-level conditions that carry no extra payload.
var (
	// ErrCallbackTimeout indicates the authorization callback never arrived
	// within the wait window.
	ErrCallbackTimeout = errors.New("timed out waiting for authorization callback")

	// ErrStateMismatch indicates the callback carried a state parameter that
	// does not match the one generated for this flow.
	ErrStateMismatch = errors.New("authorization callback state mismatch")

	// ErrNoCredentials indicates the credential store holds no record.
	ErrNoCredentials = errors.New("no stored credentials")

	// ErrReauthRequired indicates the refresh token was rejected or absent
	// and a full interactive or JWT re-authentication is needed.
	ErrReauthRequired = errors.New("re-authentication required")
)

// CallbackMalformedError indicates the provider redirected back without an
// authorization code and without an error report.
type CallbackMalformedError struct {
	Query string
}

func (e *CallbackMalformedError) Error() string {
	return "authorization callback carried neither code nor error"
}

// Is reports whether target is a CallbackMalformedError.
func (e *CallbackMalformedError) Is(target error) bool {
	_, ok := target.(*CallbackMalformedError)
	return ok
}

// ProviderCallbackError carries the error parameters the provider attached to
// the authorization callback (for example access_denied when the user
// declines the consent screen).
type ProviderCallbackError struct {
	Code        string
	Description string
}

func (e *ProviderCallbackError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.Code)
}

// Is reports whether target is a ProviderCallbackError.
func (e *ProviderCallbackError) Is(target error) bool {
	_, ok := target.(*ProviderCallbackError)
	return ok
}

// BrowserLaunchError indicates the system browser could not be opened. The
// flow keeps waiting after reporting it because the user can still open the
// printed URL manually.
type BrowserLaunchError struct {
	Err error
}

func (e *BrowserLaunchError) Error() string {
	return fmt.Sprintf("failed to open browser: %v", e.Err)
}

func (e *BrowserLaunchError) Unwrap() error {
	return e.Err
}

// CallbackPortError indicates no port in the scanned range could be bound on
// localhost. This is local misconfiguration, reported before any provider
// interaction.
type CallbackPortError struct {
	StartPort int
	Attempts  int
	Err       error
}

func (e *CallbackPortError) Error() string {
	return fmt.Sprintf("no free callback port in range %d-%d: %v",
		e.StartPort, e.StartPort+e.Attempts-1, e.Err)
}

func (e *CallbackPortError) Unwrap() error {
	return e.Err
}

// SigningError indicates the JWT assertion could not be produced, typically
// because the private key file is unreadable or not valid PEM. It surfaces
// before any network call is made.
type SigningError struct {
	Path string
	Err  error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("failed to sign assertion with key %s: %v", e.Path, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// ExchangeHTTPError is a non-200 response from the token endpoint. It keeps
// the raw status and body for diagnostics and attaches a remediation hint for
// recognized provider error codes.
type ExchangeHTTPError struct {
	StatusCode   int
	ProviderCode string
	Description  string
	Body         string
	Hint         string
}

func (e *ExchangeHTTPError) Error() string {
	if e.ProviderCode != "" {
		return fmt.Sprintf("token exchange failed: HTTP %d %s: %s", e.StatusCode, e.ProviderCode, e.Description)
	}
	return fmt.Sprintf("token exchange failed: HTTP %d", e.StatusCode)
}

// Is reports whether target is an ExchangeHTTPError.
func (e *ExchangeHTTPError) Is(target error) bool {
	_, ok := target.(*ExchangeHTTPError)
	return ok
}

// ExchangeNetworkError wraps a transport-level failure reaching the token
// endpoint (DNS, TLS, connection refused, timeout).
type ExchangeNetworkError struct {
	Endpoint string
	Err      error
}

func (e *ExchangeNetworkError) Error() string {
	return fmt.Sprintf("token endpoint unreachable (%s): %v", e.Endpoint, e.Err)
}

func (e *ExchangeNetworkError) Unwrap() error {
	return e.Err
}

// IsAuthRequired reports whether err means stored credentials cannot be made
// usable without running a full authentication flow.
func IsAuthRequired(err error) bool {
	return errors.Is(err, ErrReauthRequired) || errors.Is(err, ErrNoCredentials)
}
