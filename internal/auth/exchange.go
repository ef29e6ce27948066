package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reportpull/sfauth/internal/config"
	"github.com/reportpull/sfauth/pkg/logging"
	"github.com/reportpull/sfauth/pkg/oauth"
)

// DefaultExchangeTimeout bounds one round trip to the token endpoint.
const DefaultExchangeTimeout = 30 * time.Second

// maxErrorBodyBytes caps how much of an error response is retained for
// diagnostics.
const maxErrorBodyBytes = 64 * 1024

// Exchanger performs the three grant exchanges against the token endpoint.
// The endpoint always lives on the canonical login host for the configured
// environment; custom instance domains frequently reject direct token
// exchange, so they are never used here even when authorization went through
// one.
type Exchanger struct {
	cfg        config.Config
	httpClient *http.Client
	tokenURL   string
	now        func() time.Time
}

// ExchangerOption customizes an Exchanger.
type ExchangerOption func(*Exchanger)

// WithHTTPClient overrides the HTTP client used for exchanges.
func WithHTTPClient(client *http.Client) ExchangerOption {
	return func(e *Exchanger) {
		e.httpClient = client
	}
}

// WithTokenURL overrides the token endpoint, for tests.
func WithTokenURL(u string) ExchangerOption {
	return func(e *Exchanger) {
		e.tokenURL = u
	}
}

// WithExchangerClock overrides the time source, for tests.
func WithExchangerClock(now func() time.Time) ExchangerOption {
	return func(e *Exchanger) {
		e.now = now
	}
}

// NewExchanger creates an Exchanger for the given configuration.
func NewExchanger(cfg config.Config, opts ...ExchangerOption) *Exchanger {
	e := &Exchanger{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: DefaultExchangeTimeout},
		tokenURL:   cfg.TokenURL(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExchangeCode trades an authorization code plus PKCE verifier for tokens.
// The client secret rides along only when the resolved client auth variant
// asks for it.
func (e *Exchanger) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenRecord, error) {
	form := url.Values{
		"grant_type":    {oauth.GrantAuthorizationCode},
		"client_id":     {e.cfg.ConsumerKey},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"code_verifier": {codeVerifier},
	}
	if e.cfg.ResolvedClientAuth() == config.ClientAuthPKCEWithSecret {
		form.Set("client_secret", e.cfg.ConsumerSecret.Value())
	}
	logging.Debug("TokenExchange", "Exchanging authorization code (redirect %s, secret sent: %t)",
		redirectURI, form.Has("client_secret"))
	return e.post(ctx, form)
}

// Refresh trades a refresh token for a new access token. Providers often omit
// the refresh token from the response when it is not rotated, so the one we
// sent is carried forward.
func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (*TokenRecord, error) {
	form := url.Values{
		"grant_type":    {oauth.GrantRefreshToken},
		"client_id":     {e.cfg.ConsumerKey},
		"refresh_token": {refreshToken},
	}
	logging.Debug("TokenExchange", "Refreshing access token")
	rec, err := e.post(ctx, form)
	if err != nil {
		return nil, err
	}
	if rec.RefreshToken == "" {
		rec.RefreshToken = refreshToken
	}
	return rec, nil
}

// ExchangeAssertion trades a signed JWT-bearer assertion for an access token.
// This grant never yields a refresh token.
func (e *Exchanger) ExchangeAssertion(ctx context.Context, assertion string) (*TokenRecord, error) {
	form := url.Values{
		"grant_type": {oauth.GrantJWTBearer},
		"assertion":  {assertion},
	}
	logging.Debug("TokenExchange", "Exchanging JWT-bearer assertion")
	return e.post(ctx, form)
}

// post sends one form-encoded request to the token endpoint and maps the
// response into a TokenRecord or a structured exchange error.
func (e *Exchanger) post(ctx context.Context, form url.Values) (*TokenRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := e.now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &ExchangeNetworkError{Endpoint: e.tokenURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return nil, &ExchangeNetworkError{Endpoint: e.tokenURL, Err: err}
	}

	logging.Debug("TokenExchange", "Token endpoint answered %d in %s", resp.StatusCode, e.now().Sub(start))

	if resp.StatusCode != http.StatusOK {
		return nil, classifyExchangeError(resp.StatusCode, body)
	}

	var tr oauth.TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &ExchangeHTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Hint:       "the token endpoint returned HTTP 200 with an unparseable body",
		}
	}
	if tr.AccessToken == "" {
		return nil, &ExchangeHTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Hint:       "the token endpoint returned HTTP 200 without an access_token field",
		}
	}

	now := e.now()
	if issued := tr.IssuedAtTime(); !issued.IsZero() {
		if skew := now.Sub(issued); skew > time.Minute || skew < -time.Minute {
			logging.Debug("TokenExchange", "Provider issued_at differs from local clock by %s", skew)
		}
	}

	rec := recordFromResponse(&tr, now)
	logging.Info("TokenExchange", "Token issued for %s, expires in %ds", rec.InstanceURL, tr.ExpirySeconds())
	return rec, nil
}

// classifyExchangeError maps known provider error codes to remediation hints
// while preserving the raw status and body.
func classifyExchangeError(status int, body []byte) *ExchangeHTTPError {
	provider := oauth.ParseErrorResponse(body)
	exchErr := &ExchangeHTTPError{
		StatusCode:   status,
		ProviderCode: provider.Code,
		Description:  provider.Description,
		Body:         string(body),
	}

	switch provider.Code {
	case "invalid_grant":
		exchErr.Hint = "The authorization code or refresh token was rejected. " +
			"Codes are single-use and short-lived; refresh tokens die when a user's access is revoked " +
			"or the org enforces IP restrictions. Run 'sfauth login' to authenticate again."
	case "invalid_client", "invalid_client_id":
		exchErr.Hint = "The connected app rejected this client. Check that: " +
			"(1) the consumer key is correct, " +
			"(2) the connected app has finished propagating (up to 10 minutes after creation), " +
			"(3) 'Require Secret for Web Server Flow' matches the configured client_auth variant, " +
			"(4) the callback URL http://localhost:<port>/callback is registered, " +
			"(5) the app grants the requested OAuth scopes."
	case "oauth_flow_disabled":
		exchErr.Hint = "This OAuth flow is disabled for the connected app. " +
			"Enable OAuth settings for the app or ask a Salesforce administrator to allow it."
	default:
		exchErr.Hint = ""
	}

	logging.Warn("TokenExchange", "Exchange failed: HTTP %d %s", status, provider.Code)
	return exchErr
}
