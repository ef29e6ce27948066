package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/reportpull/sfauth/internal/config"
	"github.com/reportpull/sfauth/pkg/logging"
)

// Authenticator runs one full authentication and returns the issued record.
// BrowserFlow and JWTFlow both satisfy it.
type Authenticator interface {
	Authenticate(ctx context.Context) (*TokenRecord, error)
}

// Manager owns the credential lifecycle for one service: it keeps the
// in-memory record, decides validity, refreshes through the exchanger, runs a
// full authentication flow when no refresh token can help, and persists every
// outcome. It implements oauth2.TokenSource.
//
// Concurrent GetValidToken calls collapse into a single network operation; a
// refresh storm of N callers produces one refresh, with the other N-1 reusing
// its outcome.
type Manager struct {
	mu sync.Mutex

	cfg           config.Config
	store         CredentialStore
	exchanger     *Exchanger
	authenticator Authenticator
	interactive   bool
	now           func() time.Time

	record *TokenRecord
	loaded bool

	cache   authCache
	group   singleflight.Group
	watcher *StoreWatcher
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithStore overrides the credential store.
func WithStore(store CredentialStore) ManagerOption {
	return func(m *Manager) {
		m.store = store
	}
}

// WithExchanger overrides the token exchanger.
func WithExchanger(e *Exchanger) ManagerOption {
	return func(m *Manager) {
		m.exchanger = e
	}
}

// WithAuthenticator overrides the full-authentication flow.
func WithAuthenticator(a Authenticator) ManagerOption {
	return func(m *Manager) {
		m.authenticator = a
	}
}

// WithNonInteractive forbids the manager from launching a browser flow on its
// own; callers get ErrReauthRequired instead. The JWT flow is unaffected
// since it needs no user present.
func WithNonInteractive() ManagerOption {
	return func(m *Manager) {
		m.interactive = false
	}
}

// WithManagerClock overrides the time source, for tests.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager assembles a manager for the given configuration. Components not
// supplied through options are built with their defaults: keychain-plus-file
// store, canonical-host exchanger, and the flow matching cfg.AuthMethod.
func NewManager(cfg config.Config, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		cfg:         cfg,
		interactive: true,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		store, err := NewDefaultStore(m.serviceID())
		if err != nil {
			return nil, err
		}
		m.store = store
	}
	if m.exchanger == nil {
		m.exchanger = NewExchanger(cfg)
	}
	if m.authenticator == nil {
		switch cfg.AuthMethod {
		case config.AuthMethodJWT:
			m.authenticator = NewJWTFlow(NewAssertionSigner(cfg), m.exchanger)
		default:
			m.authenticator = NewBrowserFlow(cfg, m.exchanger)
		}
	}

	return m, nil
}

// IsValid reports whether the current record holds an access token that is
// still inside the safety buffer.
func (m *Manager) IsValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked()
	return m.record.Valid(m.now())
}

// HasCredentials reports whether any record is stored at all, valid or not.
func (m *Manager) HasCredentials() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked()
	return m.record != nil && m.record.AccessToken != ""
}

// CurrentRecord returns a copy of the in-memory record, nil when none exists.
// For display only; callers needing a usable token go through GetValidToken.
func (m *Manager) CurrentRecord() *TokenRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked()
	return m.record.Clone()
}

// GetValidToken returns a usable record, refreshing or re-authenticating as
// needed. Callers that lose the race to an in-flight refresh block on and
// share its outcome.
func (m *Manager) GetValidToken(ctx context.Context) (*TokenRecord, error) {
	m.mu.Lock()
	m.loadLocked()
	if m.record.Valid(m.now()) {
		rec := m.record.Clone()
		m.mu.Unlock()
		return rec, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do("issue", func() (interface{}, error) {
		return m.issue(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*TokenRecord).Clone(), nil
}

// AuthInfo returns the access token and instance base URL for an API call,
// serving from the cache when the underlying record is still valid and
// issuing otherwise.
func (m *Manager) AuthInfo(ctx context.Context) (accessToken, baseURL string, err error) {
	if tok, base, ok := m.cache.get(); ok && m.IsValid() {
		return tok, base, nil
	}

	rec, err := m.GetValidToken(ctx)
	if err != nil {
		return "", "", err
	}
	m.cache.set(rec.AccessToken, rec.InstanceURL)
	return rec.AccessToken, rec.InstanceURL, nil
}

// Token implements oauth2.TokenSource over the manager's lifecycle.
func (m *Manager) Token() (*oauth2.Token, error) {
	rec, err := m.GetValidToken(context.Background())
	if err != nil {
		return nil, err
	}
	return rec.ToOAuth2(), nil
}

// Invalidate marks the current access token unusable without touching the
// durable store. Used after a 401: the server has already decided, regardless
// of what the local expiry says.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	// Load first so invalidating a freshly built manager expires the stored
	// record instead of silently doing nothing.
	m.loadLocked()
	if m.record != nil {
		m.record.ExpiresAt = m.now()
	}
	m.mu.Unlock()
	m.cache.invalidate()
}

// ClearCredentials wipes the in-memory record and the durable store. Missing
// store entries are not an error.
func (m *Manager) ClearCredentials() error {
	m.mu.Lock()
	m.record = nil
	m.loaded = true
	m.mu.Unlock()

	m.cache.invalidate()
	logging.Info("TokenManager", "Credentials cleared")
	return m.store.Clear()
}

// StartStoreWatcher watches the fallback token file so logins or logouts from
// another process invalidate this one's state.
func (m *Manager) StartStoreWatcher() error {
	path, err := DefaultTokenFilePath(m.serviceID())
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		return nil
	}
	m.watcher = NewStoreWatcher(StoreWatcherConfig{
		Path:     path,
		OnChange: m.reloadFromStore,
	})
	return m.watcher.Start()
}

// Close stops the store watcher if one is running.
func (m *Manager) Close() error {
	m.mu.Lock()
	watcher := m.watcher
	m.watcher = nil
	m.mu.Unlock()

	if watcher != nil {
		return watcher.Stop()
	}
	return nil
}

// issue runs under singleflight: exactly one refresh or authentication is in
// flight per manager no matter how many callers piled up.
func (m *Manager) issue(ctx context.Context) (*TokenRecord, error) {
	m.mu.Lock()
	m.loadLocked()
	// A caller that queued behind a completed issue finds a fresh record.
	if m.record.Valid(m.now()) {
		rec := m.record.Clone()
		m.mu.Unlock()
		return rec, nil
	}
	var refreshToken, instanceURL string
	if m.record != nil {
		refreshToken = m.record.RefreshToken
		instanceURL = m.record.InstanceURL
	}
	m.mu.Unlock()

	if refreshToken != "" {
		rec, err := m.exchanger.Refresh(ctx, refreshToken)
		if err == nil {
			if rec.InstanceURL == "" {
				rec.InstanceURL = instanceURL
			}
			m.install(rec)
			return rec, nil
		}

		var httpErr *ExchangeHTTPError
		if errors.As(err, &httpErr) {
			// The provider rejected the refresh token, so it is dead weight
			// from here on. Transient network failures keep it.
			logging.Warn("TokenManager", "Refresh rejected (HTTP %d %s), dropping refresh token",
				httpErr.StatusCode, httpErr.ProviderCode)
			m.dropRefreshToken()
			return nil, errors.Join(ErrReauthRequired, err)
		}
		return nil, err
	}

	if m.cfg.AuthMethod != config.AuthMethodJWT && !m.interactive {
		return nil, ErrReauthRequired
	}
	if m.authenticator == nil {
		return nil, ErrReauthRequired
	}

	logging.Info("TokenManager", "No refresh token available, running %s authentication", m.authMethod())
	rec, err := m.authenticator.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	m.install(rec)
	return rec, nil
}

// install makes rec the current record, refreshes the cache, and persists.
// Persistence failure is reported but does not cost the caller a token that
// is already valid in memory.
func (m *Manager) install(rec *TokenRecord) {
	m.mu.Lock()
	m.record = rec.Clone()
	m.loaded = true
	m.mu.Unlock()

	m.cache.invalidate()
	m.cache.set(rec.AccessToken, rec.InstanceURL)

	if err := m.store.Save(rec); err != nil {
		logging.Warn("TokenManager", "Failed to persist credentials: %v", err)
	}
}

// dropRefreshToken removes the rejected refresh token from memory and store
// so later processes do not retry it.
func (m *Manager) dropRefreshToken() {
	m.mu.Lock()
	var snapshot *TokenRecord
	if m.record != nil {
		m.record.RefreshToken = ""
		snapshot = m.record.Clone()
	}
	m.mu.Unlock()

	m.cache.invalidate()
	if snapshot != nil {
		if err := m.store.Save(snapshot); err != nil {
			logging.Warn("TokenManager", "Failed to persist refresh token removal: %v", err)
		}
	}
}

// reloadFromStore is the watcher callback: forget the in-memory view and let
// the next read pick up whatever the other process wrote.
func (m *Manager) reloadFromStore() {
	m.mu.Lock()
	m.record = nil
	m.loaded = false
	m.mu.Unlock()

	m.cache.invalidate()
	logging.Info("TokenManager", "Credential store changed externally, reloading on next use")
}

// loadLocked pulls the persisted record into memory once. Callers hold m.mu.
func (m *Manager) loadLocked() {
	if m.loaded {
		return
	}
	m.loaded = true

	rec, err := m.store.Load()
	if err != nil {
		if !errors.Is(err, ErrNoCredentials) {
			logging.Warn("TokenManager", "Failed to load stored credentials: %v", err)
		}
		return
	}
	m.record = rec
	logging.Debug("TokenManager", "Loaded stored credentials for %s", rec.InstanceURL)
}

func (m *Manager) serviceID() string {
	if m.cfg.ServiceID != "" {
		return m.cfg.ServiceID
	}
	return config.DefaultServiceID
}

func (m *Manager) authMethod() config.AuthMethod {
	if m.cfg.AuthMethod != "" {
		return m.cfg.AuthMethod
	}
	return config.AuthMethodBrowser
}
