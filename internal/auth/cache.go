package auth

import "sync"

// authCache memoizes the (access token, base URL) pair handed to API
// callers. Presence alone is never trusted: the manager re-confirms validity
// on every read, because the underlying token may have been revoked or have
// expired while idle. Any refresh, re-authentication, or clear invalidates
// the cache before the next read.
type authCache struct {
	mu          sync.Mutex
	accessToken string
	baseURL     string
	populated   bool
}

// get returns the memoized pair. The ok result only means a pair is present;
// the caller still owns the validity re-check.
func (c *authCache) get() (accessToken, baseURL string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.populated {
		return "", "", false
	}
	return c.accessToken, c.baseURL, true
}

func (c *authCache) set(accessToken, baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
	c.baseURL = baseURL
	c.populated = true
}

func (c *authCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.baseURL = ""
	c.populated = false
}
