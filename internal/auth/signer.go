package auth

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/reportpull/sfauth/internal/config"
	"github.com/reportpull/sfauth/pkg/logging"
)

// Assertion lifetimes. Providers reject assertions with a long validity
// window, so the ceiling is enforced locally.
const (
	DefaultAssertionLifetime = 3 * time.Minute
	MaxAssertionLifetime     = 5 * time.Minute
)

// assertionClaims is the claim set for JWT-bearer assertions. The key id
// travels as a claim alongside the registered set.
type assertionClaims struct {
	jwt.RegisteredClaims
	KeyID string `json:"kid,omitempty"`
}

// AssertionSigner mints RS256-signed bearer assertions from the configured
// consumer key, subject, and private key. Every exchange attempt gets a fresh
// assertion; they are never cached or reused.
type AssertionSigner struct {
	cfg      config.Config
	lifetime time.Duration
	now      func() time.Time
}

// SignerOption customizes an AssertionSigner.
type SignerOption func(*AssertionSigner)

// WithAssertionLifetime overrides the default assertion validity window.
func WithAssertionLifetime(d time.Duration) SignerOption {
	return func(s *AssertionSigner) {
		s.lifetime = d
	}
}

// WithSignerClock overrides the time source, for tests.
func WithSignerClock(now func() time.Time) SignerOption {
	return func(s *AssertionSigner) {
		s.now = now
	}
}

// NewAssertionSigner creates a signer for the given configuration.
func NewAssertionSigner(cfg config.Config, opts ...SignerOption) *AssertionSigner {
	s := &AssertionSigner{
		cfg:      cfg,
		lifetime: DefaultAssertionLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign reads the private key and returns a signed assertion string. Any key
// problem is a configuration defect and comes back as a *SigningError before
// any network activity.
func (s *AssertionSigner) Sign() (string, error) {
	if s.lifetime <= 0 || s.lifetime > MaxAssertionLifetime {
		return "", &SigningError{
			Path: s.cfg.PrivateKeyPath,
			Err:  fmt.Errorf("assertion lifetime %s outside (0, %s]", s.lifetime, MaxAssertionLifetime),
		}
	}

	pemData, err := os.ReadFile(s.cfg.PrivateKeyPath)
	if err != nil {
		return "", &SigningError{Path: s.cfg.PrivateKeyPath, Err: err}
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemData)
	if err != nil {
		return "", &SigningError{Path: s.cfg.PrivateKeyPath, Err: err}
	}

	now := s.now()
	claims := assertionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.ConsumerKey,
			Subject:   s.cfg.JWTSubject,
			Audience:  jwt.ClaimStrings{s.cfg.AssertionAudience()},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
		KeyID: s.cfg.KeyID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", &SigningError{Path: s.cfg.PrivateKeyPath, Err: err}
	}

	logging.Debug("Assertion", "Minted assertion for %s (audience %s, lifetime %s)",
		s.cfg.JWTSubject, s.cfg.AssertionAudience(), s.lifetime)
	return signed, nil
}
