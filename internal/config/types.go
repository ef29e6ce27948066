package config

import (
	"strings"

	"github.com/reportpull/sfauth/pkg/oauth"
)

// Environment selects which canonical login host token exchanges go through.
type Environment string

const (
	// EnvironmentProduction exchanges tokens via login.salesforce.com.
	EnvironmentProduction Environment = "production"
	// EnvironmentSandbox exchanges tokens via test.salesforce.com.
	EnvironmentSandbox Environment = "sandbox"
)

// AuthMethod selects how credentials are obtained when no refresh token can
// help.
type AuthMethod string

const (
	// AuthMethodBrowser runs the interactive authorization-code flow with
	// PKCE through the user's browser.
	AuthMethodBrowser AuthMethod = "browser"
	// AuthMethodJWT runs the non-interactive JWT-bearer flow using a locally
	// held RSA private key.
	AuthMethodJWT AuthMethod = "jwt"
)

// ClientAuth selects the authorization-code variant. Connected apps differ on
// whether "Require Secret for Web Server Flow" is enabled; sending a secret
// to an app that forbids it fails just like omitting a required one, so the
// variant is an explicit validated choice rather than an inference from
// secret presence at request time.
type ClientAuth string

const (
	// ClientAuthPKCE sends no client_secret during code exchange even when
	// one is configured.
	ClientAuthPKCE ClientAuth = "pkce"
	// ClientAuthPKCEWithSecret sends the configured client_secret alongside
	// the PKCE verifier.
	ClientAuthPKCEWithSecret ClientAuth = "pkce_with_secret"
)

// Canonical login hosts. Token exchange always goes through one of these,
// never through a vanity instance domain (§ LoginURL vs TokenURL).
const (
	ProductionLoginURL = "https://login.salesforce.com"
	SandboxLoginURL    = "https://test.salesforce.com"
)

const (
	// DefaultServiceID namespaces keychain entries and the fallback token
	// file. It matches the desktop application this core serves.
	DefaultServiceID = "SalesforceReportPull"

	// DefaultAPIVersion is the REST API version used by probe calls.
	DefaultAPIVersion = "58.0"

	// DefaultScope is requested during browser authorization.
	DefaultScope = "full"

	// DefaultCallbackPortStart is the first localhost port tried for the
	// one-shot callback listener.
	DefaultCallbackPortStart = 8080
)

// Config is the immutable credential configuration for one logical service
// account. It is assembled once by Load and passed by value into every
// component that needs it; nothing mutates it afterwards.
type Config struct {
	// ServiceID namespaces persisted state (keychain service name, fallback
	// directory).
	ServiceID string `yaml:"service_id,omitempty"`

	// Environment selects the canonical login host (production or sandbox).
	Environment Environment `yaml:"environment,omitempty"`

	// AuthMethod selects browser (PKCE) or jwt (JWT-bearer) issuance.
	AuthMethod AuthMethod `yaml:"auth_method,omitempty"`

	// ClientAuth selects the PKCE-only or PKCE-plus-secret exchange variant.
	// Empty means: resolve from secret presence at validation time.
	ClientAuth ClientAuth `yaml:"client_auth,omitempty"`

	// ConsumerKey is the connected app's client_id. Required always.
	ConsumerKey string `yaml:"consumer_key,omitempty"`

	// ConsumerSecret is the connected app's client_secret. Optional; only
	// sent when ClientAuth resolves to pkce_with_secret.
	ConsumerSecret oauth.Redacted `yaml:"consumer_secret,omitempty"`

	// JWTSubject is the username the JWT-bearer assertion authenticates.
	JWTSubject string `yaml:"jwt_subject,omitempty"`

	// PrivateKeyPath points at the PEM-encoded RSA key for JWT signing.
	PrivateKeyPath string `yaml:"jwt_private_key_path,omitempty"`

	// KeyID is added to the assertion claims as kid when set.
	KeyID string `yaml:"jwt_key_id,omitempty"`

	// InstanceURL overrides the authorization host with a custom/vanity
	// domain. Token exchange still uses the canonical host.
	InstanceURL string `yaml:"instance_url,omitempty"`

	// APIVersion is the REST API version for probe calls.
	APIVersion string `yaml:"api_version,omitempty"`

	// Scope is the space-separated OAuth scope for browser authorization.
	Scope string `yaml:"scope,omitempty"`

	// CallbackPortStart is the first port tried by the callback listener.
	CallbackPortStart int `yaml:"callback_port_start,omitempty"`
}

// LoginURL returns the host used for the authorization step. A configured
// custom instance URL wins; otherwise the canonical host for the environment.
func (c Config) LoginURL() string {
	if c.InstanceURL != "" {
		u := strings.TrimRight(c.InstanceURL, "/")
		if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
			u = "https://" + u
		}
		return u
	}
	return c.canonicalURL()
}

// TokenURL returns the full token endpoint on the canonical host for the
// configured environment. Custom instance domains frequently reject direct
// token exchange, so this deliberately ignores InstanceURL.
func (c Config) TokenURL() string {
	return c.canonicalURL() + "/services/oauth2/token"
}

// AuthorizeURL returns the full authorization endpoint, which does honor a
// custom instance domain.
func (c Config) AuthorizeURL() string {
	return c.LoginURL() + "/services/oauth2/authorize"
}

// AssertionAudience returns the aud claim for JWT-bearer assertions. It
// follows the authorization host, not the canonical exchange host, because
// the provider validates the assertion against the org the user signs in to.
func (c Config) AssertionAudience() string {
	return c.LoginURL() + "/services/oauth2/token"
}

func (c Config) canonicalURL() string {
	if c.Environment == EnvironmentSandbox {
		return SandboxLoginURL
	}
	return ProductionLoginURL
}

// ResolvedClientAuth returns the explicit ClientAuth if set, otherwise the
// default derived from secret presence. Validate logs and checks the
// resolution; request paths must use this, never the raw field.
func (c Config) ResolvedClientAuth() ClientAuth {
	if c.ClientAuth != "" {
		return c.ClientAuth
	}
	if !c.ConsumerSecret.IsEmpty() {
		return ClientAuthPKCEWithSecret
	}
	return ClientAuthPKCE
}
