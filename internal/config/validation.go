package config

import (
	"fmt"
	"strings"

	"github.com/reportpull/sfauth/pkg/logging"
)

// IncompleteConfigError reports every missing or inconsistent field at once
// so the user fixes the configuration in one pass instead of replaying the
// command per field.
type IncompleteConfigError struct {
	// Missing lists the fields (with their environment variable names) that
	// the selected auth method requires.
	Missing []string
	// Method is the auth method the validation ran against.
	Method AuthMethod
}

// Error returns an actionable message naming each missing field.
func (e *IncompleteConfigError) Error() string {
	return fmt.Sprintf("incomplete configuration for %s authentication: missing %s",
		e.Method, strings.Join(e.Missing, ", "))
}

// Is allows errors.Is() matching against the type.
func (e *IncompleteConfigError) Is(target error) bool {
	_, ok := target.(*IncompleteConfigError)
	return ok
}

// Validate checks the configuration against the selected auth method and the
// resolved client-auth variant. It returns an IncompleteConfigError naming
// everything that is missing, or an error describing an invalid enum value.
func Validate(cfg Config) error {
	switch cfg.Environment {
	case EnvironmentProduction, EnvironmentSandbox:
	default:
		return fmt.Errorf("invalid environment %q: must be %q or %q",
			cfg.Environment, EnvironmentProduction, EnvironmentSandbox)
	}

	switch cfg.AuthMethod {
	case AuthMethodBrowser, AuthMethodJWT:
	default:
		return fmt.Errorf("invalid auth method %q: must be %q or %q",
			cfg.AuthMethod, AuthMethodBrowser, AuthMethodJWT)
	}

	var missing []string
	if cfg.ConsumerKey == "" {
		missing = append(missing, "consumer key ("+EnvConsumerKey+")")
	}

	if cfg.AuthMethod == AuthMethodJWT {
		if cfg.JWTSubject == "" {
			missing = append(missing, "JWT subject ("+EnvJWTSubject+")")
		}
		if cfg.PrivateKeyPath == "" {
			missing = append(missing, "JWT private key path ("+EnvPrivateKeyPath+")")
		}
	}

	switch cfg.ClientAuth {
	case "", ClientAuthPKCE:
	case ClientAuthPKCEWithSecret:
		if cfg.ConsumerSecret.IsEmpty() {
			missing = append(missing, "consumer secret ("+EnvConsumerSecret+"), required by client_auth="+string(ClientAuthPKCEWithSecret))
		}
	default:
		return fmt.Errorf("invalid client_auth %q: must be %q or %q",
			cfg.ClientAuth, ClientAuthPKCE, ClientAuthPKCEWithSecret)
	}

	if len(missing) > 0 {
		return &IncompleteConfigError{Missing: missing, Method: cfg.AuthMethod}
	}

	logging.Debug("Config", "Validated configuration: method=%s client_auth=%s environment=%s",
		cfg.AuthMethod, cfg.ResolvedClientAuth(), cfg.Environment)
	return nil
}
