package session

import (
	"net"
	"net/http"
	"time"
)

// Default pool settings for general API traffic.
const (
	DefaultMaxConns        = 100
	DefaultMaxConnsPerHost = 30
	DefaultDNSCacheTTL     = 5 * time.Minute
	DefaultKeepAlive       = 60 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultReadTimeout     = 60 * time.Second
	DefaultTotalTimeout    = 90 * time.Second
)

// PoolConfig controls the HTTP connection pool behind one session handle.
type PoolConfig struct {
	// MaxConns caps the total pooled connections.
	MaxConns int

	// MaxConnsPerHost caps connections to a single remote host.
	MaxConnsPerHost int

	// DNSCacheTTL is carried for configuration parity; name resolution and
	// its caching belong to the OS resolver here.
	DNSCacheTTL time.Duration

	// KeepAlive is how long an idle connection stays pooled.
	KeepAlive time.Duration

	// ConnectTimeout bounds dialing the remote host.
	ConnectTimeout time.Duration

	// ReadTimeout bounds the wait for response headers.
	ReadTimeout time.Duration

	// TotalTimeout bounds the whole request including the body.
	TotalTimeout time.Duration
}

// DefaultPoolConfig returns the general-purpose pool settings.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        DefaultMaxConns,
		MaxConnsPerHost: DefaultMaxConnsPerHost,
		DNSCacheTTL:     DefaultDNSCacheTTL,
		KeepAlive:       DefaultKeepAlive,
		ConnectTimeout:  DefaultConnectTimeout,
		ReadTimeout:     DefaultReadTimeout,
		TotalTimeout:    DefaultTotalTimeout,
	}
}

// SalesforcePoolConfig returns the pool tuned for Salesforce API traffic:
// fewer connections so org rate limits are respected, longer windows because
// report exports are slow to first byte.
func SalesforcePoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        50,
		MaxConnsPerHost: 20,
		DNSCacheTTL:     DefaultDNSCacheTTL,
		KeepAlive:       90 * time.Second,
		ConnectTimeout:  15 * time.Second,
		ReadTimeout:     90 * time.Second,
		TotalTimeout:    120 * time.Second,
	}
}

// normalized fills zero fields with defaults so a partially specified config
// still yields a working pool.
func (c PoolConfig) normalized() PoolConfig {
	d := DefaultPoolConfig()
	if c.MaxConns == 0 {
		c.MaxConns = d.MaxConns
	}
	if c.MaxConnsPerHost == 0 {
		c.MaxConnsPerHost = d.MaxConnsPerHost
	}
	if c.DNSCacheTTL == 0 {
		c.DNSCacheTTL = d.DNSCacheTTL
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = d.KeepAlive
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.TotalTimeout == 0 {
		c.TotalTimeout = d.TotalTimeout
	}
	return c
}

// newTransport maps the pool settings onto an http.Transport.
func (c PoolConfig) newTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:          c.MaxConns,
		MaxConnsPerHost:       c.MaxConnsPerHost,
		MaxIdleConnsPerHost:   c.MaxConnsPerHost,
		IdleConnTimeout:       c.KeepAlive,
		ResponseHeaderTimeout: c.ReadTimeout,
		DialContext: (&net.Dialer{
			Timeout:   c.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
}
