package auth

import (
	"time"

	"golang.org/x/oauth2"

	"github.com/reportpull/sfauth/pkg/oauth"
)

// ExpiryBuffer is subtracted from a token's expiry when deciding validity so
// a token is never handed out moments before it expires mid-request.
const ExpiryBuffer = 5 * time.Minute

// TokenRecord is the persisted unit of credential state: one access token
// with its refresh token, the instance it belongs to, and its expiry.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string
	InstanceURL  string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Valid reports whether the record holds an access token that is still safe
// to use at the given time, honoring the expiry buffer.
func (r *TokenRecord) Valid(now time.Time) bool {
	if r == nil || r.AccessToken == "" || r.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(r.ExpiresAt.Add(-ExpiryBuffer))
}

// TimeToExpiry returns how long until the record expires, negative when it
// already has. Zero-value records report zero.
func (r *TokenRecord) TimeToExpiry(now time.Time) time.Duration {
	if r == nil || r.ExpiresAt.IsZero() {
		return 0
	}
	return r.ExpiresAt.Sub(now)
}

// Clone returns a copy so callers can hold a record without racing the
// manager's in-memory state.
func (r *TokenRecord) Clone() *TokenRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// ToOAuth2 converts the record into an *oauth2.Token so it can be used with
// golang.org/x/oauth2 transports and SetAuthHeader.
func (r *TokenRecord) ToOAuth2() *oauth2.Token {
	if r == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       r.ExpiresAt,
	}
}

// recordFromResponse turns a wire response into a TokenRecord. Expiry counts
// from local time, not the provider's issued_at, so clock skew on the
// provider side cannot make a fresh token appear stale.
func recordFromResponse(resp *oauth.TokenResponse, now time.Time) *TokenRecord {
	return &TokenRecord{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		InstanceURL:  resp.InstanceURL,
		IssuedAt:     now,
		ExpiresAt:    now.Add(time.Duration(resp.ExpirySeconds()) * time.Second),
	}
}
