package oauth

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// DefaultExpirySeconds is assumed when the token endpoint omits expires_in.
// Salesforce-style providers frequently leave it out of web-server-flow
// responses; one hour matches their session default.
const DefaultExpirySeconds = 3600

// GrantAuthorizationCode, GrantRefreshToken and GrantJWTBearer are the
// grant_type values this package exchanges.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantJWTBearer         = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// TokenResponse is the JSON body of a successful token endpoint response.
//
// Providers in the Salesforce family return issued_at as an epoch-millisecond
// string and omit expires_in entirely for some grants; ExpirySeconds smooths
// both quirks over.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	InstanceURL  string `json:"instance_url,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IssuedAt     string `json:"issued_at,omitempty"`
	Signature    string `json:"signature,omitempty"`
	ID           string `json:"id,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// ExpirySeconds returns expires_in, defaulting when the provider omits it.
func (r *TokenResponse) ExpirySeconds() int {
	if r.ExpiresIn <= 0 {
		return DefaultExpirySeconds
	}
	return r.ExpiresIn
}

// IssuedAtTime parses the issued_at epoch-millisecond string.
// Returns the zero time when the field is absent or unparseable; callers
// fall back to their own clock in that case.
func (r *TokenResponse) IssuedAtTime() time.Time {
	if r.IssuedAt == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(r.IssuedAt, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// ErrorResponse is the JSON body of a failed token endpoint response.
type ErrorResponse struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// ParseErrorResponse extracts the provider error code and description from a
// non-200 token endpoint body. Bodies that are not the expected JSON shape
// (HTML error pages, proxies, truncated responses) yield an empty code so
// callers classify them as unrecognized; the raw body is always preserved
// alongside for diagnostics.
func ParseErrorResponse(body []byte) ErrorResponse {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ErrorResponse{}
	}
	resp.Code = strings.TrimSpace(resp.Code)
	return resp
}
