package sfapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/reportpull/sfauth/internal/config"
	"github.com/reportpull/sfauth/internal/session"
	"github.com/reportpull/sfauth/pkg/logging"
)

const userAgent = "sfauth-client/1.0"

// maxResponseBytes bounds response reads; the console can fetch arbitrary
// paths and a runaway body should not exhaust memory.
const maxResponseBytes = 4 << 20

// TokenProvider supplies the access token and instance base URL for API
// calls and accepts server-side rejection notices. The auth token manager
// satisfies it.
type TokenProvider interface {
	AuthInfo(ctx context.Context) (accessToken, baseURL string, err error)
	Invalidate()
}

// Client issues authenticated GET requests against one Salesforce org on
// behalf of one execution context. Each worker constructs its own client; the
// shared registry keeps their connection pools apart.
type Client struct {
	contextID  string
	tokens     TokenProvider
	registry   *session.Registry
	pool       session.PoolConfig
	apiVersion string
}

// Option customizes a Client.
type Option func(*Client)

// WithAPIVersion overrides the REST API version used for versioned paths.
func WithAPIVersion(version string) Option {
	return func(c *Client) {
		c.apiVersion = version
	}
}

// WithPool overrides the connection pool settings for this client's session.
func WithPool(pool session.PoolConfig) Option {
	return func(c *Client) {
		c.pool = pool
	}
}

// NewClient builds a client bound to contextID. The registry is shared across
// workers; the binding is what keeps each worker on its own session.
func NewClient(contextID string, tokens TokenProvider, registry *session.Registry, opts ...Option) *Client {
	c := &Client{
		contextID:  contextID,
		tokens:     tokens,
		registry:   registry,
		pool:       session.SalesforcePoolConfig(),
		apiVersion: config.DefaultAPIVersion,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Versions lists the REST API versions the org serves.
func (c *Client) Versions(ctx context.Context) ([]APIVersion, error) {
	var versions []APIVersion
	if err := c.getJSON(ctx, "/services/data/", &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// Limits returns the org limits for the configured API version.
func (c *Client) Limits(ctx context.Context) (map[string]Limit, error) {
	limits := make(map[string]Limit)
	if err := c.getJSON(ctx, c.versionedPath("limits"), &limits); err != nil {
		return nil, err
	}
	return limits, nil
}

// UserInfo returns the identity behind the current access token.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	var info UserInfo
	if err := c.getJSON(ctx, "/services/oauth2/userinfo", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// TestConnection probes the org with a one-row Organization query and
// returns its identity. It exercises the full stack: token issue, session
// acquisition, and an authenticated call.
func (c *Client) TestConnection(ctx context.Context) (*OrgInfo, error) {
	soql := "SELECT Id, Name FROM Organization LIMIT 1"
	path := c.versionedPath("query") + "?q=" + url.QueryEscape(soql)

	var result organizationQuery
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return nil, fmt.Errorf("organization query returned no records")
	}
	return &OrgInfo{ID: result.Records[0].ID, Name: result.Records[0].Name}, nil
}

// Get fetches an arbitrary API path and returns the raw body. Used by the
// console's get command.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	body, status, err := c.roundTrip(ctx, path)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		// The org rejected a token the local clock still trusted. Re-issue
		// and retry exactly once; a second 401 is reported as-is.
		logging.Info("APIClient", "Received 401 for %s, invalidating token and retrying once", path)
		c.tokens.Invalidate()
		body, status, err = c.roundTrip(ctx, path)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, &APIError{StatusCode: status, Path: path, Body: string(body)}
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	body, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// roundTrip performs one authenticated GET through this context's session.
func (c *Client) roundTrip(ctx context.Context, path string) ([]byte, int, error) {
	token, base, err := c.tokens.AuthInfo(ctx)
	if err != nil {
		return nil, 0, err
	}

	handle := c.registry.Ensure(c.contextID, c.pool)
	httpClient, err := handle.Acquire(c.contextID)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil, 0, err
	}
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func (c *Client) versionedPath(suffix string) string {
	return "/services/data/v" + c.apiVersion + "/" + suffix
}
