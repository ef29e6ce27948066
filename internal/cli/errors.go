package cli

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// AuthRequiredError indicates no usable credentials exist and a login must
// run before the command can do its work.
type AuthRequiredError struct {
	// Reason is the underlying condition, when one exists.
	Reason error
}

// Error returns a user-facing message with the command to run next.
func (e *AuthRequiredError) Error() string {
	head := "Authentication required"
	if e.Reason != nil {
		head = fmt.Sprintf("Authentication required: %v", e.Reason)
	}
	return head + `

To authenticate, run:
  sfauth login

To check current authentication status:
  sfauth status`
}

// Unwrap returns the underlying condition.
func (e *AuthRequiredError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthRequiredError) Is(target error) bool {
	_, ok := target.(*AuthRequiredError)
	return ok
}

// AuthFailedError indicates an authentication flow ran and failed.
type AuthFailedError struct {
	// Method is the flow that failed, browser or jwt.
	Method string
	// Reason is the underlying error.
	Reason error
}

// Error returns a user-facing message with the command to retry.
func (e *AuthFailedError) Error() string {
	return fmt.Sprintf(`Authentication failed (%s flow): %v

To retry, run:
  sfauth login --method %s`, e.Method, e.Reason, e.Method)
}

// Unwrap returns the underlying error.
func (e *AuthFailedError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthFailedError) Is(target error) bool {
	_, ok := target.(*AuthFailedError)
	return ok
}

// ConnectionErrorType categorizes how reaching a Salesforce host failed.
type ConnectionErrorType int

const (
	// ConnectionErrorUnknown indicates an unclassified connection error.
	ConnectionErrorUnknown ConnectionErrorType = iota
	// ConnectionErrorTLS indicates a TLS or certificate verification error.
	ConnectionErrorTLS
	// ConnectionErrorNetwork indicates the host refused or reset the connection.
	ConnectionErrorNetwork
	// ConnectionErrorTimeout indicates the host did not answer in time.
	ConnectionErrorTimeout
	// ConnectionErrorDNS indicates the host name did not resolve.
	ConnectionErrorDNS
)

// String returns a human-readable name for the connection error type.
func (t ConnectionErrorType) String() string {
	switch t {
	case ConnectionErrorTLS:
		return "TLS certificate error"
	case ConnectionErrorNetwork:
		return "Network error"
	case ConnectionErrorTimeout:
		return "Connection timeout"
	case ConnectionErrorDNS:
		return "DNS resolution error"
	default:
		return "Connection error"
	}
}

// ConnectionError wraps a transport failure against a named endpoint with a
// category the status and verify commands can present.
type ConnectionError struct {
	// Endpoint is the URL that could not be reached.
	Endpoint string
	// Type categorizes the failure.
	Type ConnectionErrorType
	// Reason is the underlying error.
	Reason error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s reaching %s: %v", e.Type, e.Endpoint, e.Reason)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Reason
}

// ClassifyConnectionError buckets err into a ConnectionError for endpoint.
// A nil err returns nil.
func ClassifyConnectionError(err error, endpoint string) *ConnectionError {
	if err == nil {
		return nil
	}

	kind := ConnectionErrorUnknown
	switch {
	case isTLSError(err):
		kind = ConnectionErrorTLS
	case isDNSError(err):
		kind = ConnectionErrorDNS
	case isTimeoutError(err):
		kind = ConnectionErrorTimeout
	case isNetworkError(err):
		kind = ConnectionErrorNetwork
	}

	return &ConnectionError{
		Endpoint: endpoint,
		Type:     kind,
		Reason:   err,
	}
}

func isTLSError(err error) bool {
	var certErr *x509.CertificateInvalidError
	var hostErr *x509.HostnameError
	var unknownAuthErr *x509.UnknownAuthorityError
	if errors.As(err, &certErr) || errors.As(err, &hostErr) || errors.As(err, &unknownAuthErr) {
		return true
	}

	msg := err.Error()
	for _, keyword := range []string{"x509:", "certificate", "tls:", "TLS handshake"} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}

func isNetworkError(err error) bool {
	msg := err.Error()
	for _, keyword := range []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"dial tcp",
	} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}
