package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/reportpull/sfauth/internal/config"
	"github.com/reportpull/sfauth/pkg/logging"
	"github.com/reportpull/sfauth/pkg/oauth"
)

// FlowState tracks an authorization attempt through its lifecycle.
type FlowState int

const (
	// FlowIdle means the attempt has not started.
	FlowIdle FlowState = iota
	// FlowPortBound means the callback listener is bound and the
	// authorization URL is built.
	FlowPortBound
	// FlowBrowserOpened means the system browser launch succeeded.
	FlowBrowserOpened
	// FlowAwaitingCallback means the attempt is blocked on the redirect.
	FlowAwaitingCallback
	// FlowCodeReceived means the provider returned an authorization code.
	FlowCodeReceived
	// FlowErrorReceived means the provider returned an error, the state
	// check failed, or the callback was malformed.
	FlowErrorReceived
	// FlowTimedOut means no callback arrived within the wait window.
	FlowTimedOut
)

// String returns a human-readable state name.
func (s FlowState) String() string {
	switch s {
	case FlowIdle:
		return "idle"
	case FlowPortBound:
		return "port_bound"
	case FlowBrowserOpened:
		return "browser_opened"
	case FlowAwaitingCallback:
		return "awaiting_callback"
	case FlowCodeReceived:
		return "code_received"
	case FlowErrorReceived:
		return "error_received"
	case FlowTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// FlowOption customizes a BrowserFlow.
type FlowOption func(*BrowserFlow)

// WithBrowserOpener overrides how the authorization URL is opened, for tests
// and for callers that render the URL themselves.
func WithBrowserOpener(open func(url string) error) FlowOption {
	return func(f *BrowserFlow) {
		f.openBrowser = open
	}
}

// WithCallbackWait overrides the callback wait window.
func WithCallbackWait(d time.Duration) FlowOption {
	return func(f *BrowserFlow) {
		f.waitTimeout = d
	}
}

// WithAuthURLSink registers a callback invoked with the authorization URL
// whenever Authenticate runs, so an embedding CLI can print it for manual
// opening.
func WithAuthURLSink(sink func(url string)) FlowOption {
	return func(f *BrowserFlow) {
		f.authURLSink = sink
	}
}

// BrowserFlow runs the interactive authorization-code flow with PKCE: bind a
// localhost callback port, send the user's browser to the authorization
// endpoint, wait for the one-shot redirect, and exchange the code.
type BrowserFlow struct {
	cfg         config.Config
	exchanger   *Exchanger
	openBrowser func(url string) error
	authURLSink func(url string)
	waitTimeout time.Duration
}

// NewBrowserFlow creates a flow for the given configuration.
func NewBrowserFlow(cfg config.Config, exchanger *Exchanger, opts ...FlowOption) *BrowserFlow {
	f := &BrowserFlow{
		cfg:         cfg,
		exchanger:   exchanger,
		openBrowser: OpenBrowser,
		waitTimeout: DefaultCallbackWait,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PendingAuthorization is one single-use authorization attempt. The PKCE
// verifier and state nonce live only here and are consumed by Wait exactly
// once.
type PendingAuthorization struct {
	AuthURL string

	flow   *BrowserFlow
	server *CallbackServer
	pkce   *oauth.PKCEChallenge
	state  string

	mu       sync.Mutex
	st       FlowState
	consumed bool
}

// Begin generates the PKCE parameters and state nonce, binds the callback
// listener, and builds the authorization URL. The caller chooses how to get
// the user there (OpenBrowser, or printing the URL) and then calls Wait.
func (f *BrowserFlow) Begin(ctx context.Context) (*PendingAuthorization, error) {
	pkce, err := oauth.GeneratePKCE()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE parameters: %w", err)
	}

	state, err := oauth.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state nonce: %w", err)
	}

	startPort := f.cfg.CallbackPortStart
	if startPort == 0 {
		startPort = config.DefaultCallbackPortStart
	}
	server, err := NewCallbackServer(startPort)
	if err != nil {
		return nil, err
	}
	server.Start(ctx)

	authURL, err := f.buildAuthorizationURL(server.RedirectURI(), state, pkce)
	if err != nil {
		_ = server.Stop()
		return nil, err
	}

	logging.Info("AuthFlow", "Authorization prepared on port %d (scope %q)", server.Port(), f.scope())
	return &PendingAuthorization{
		AuthURL: authURL,
		flow:    f,
		server:  server,
		pkce:    pkce,
		state:   state,
		st:      FlowPortBound,
	}, nil
}

// Authenticate runs the whole flow: Begin, open the browser (falling back to
// the URL sink when the launch fails), and Wait.
func (f *BrowserFlow) Authenticate(ctx context.Context) (*TokenRecord, error) {
	pending, err := f.Begin(ctx)
	if err != nil {
		return nil, err
	}

	if f.authURLSink != nil {
		f.authURLSink(pending.AuthURL)
	}
	if err := pending.OpenBrowser(); err != nil {
		logging.Warn("AuthFlow", "Browser launch failed, URL must be opened manually: %v", err)
	}

	return pending.Wait(ctx)
}

// State returns the attempt's current lifecycle state.
func (p *PendingAuthorization) State() FlowState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st
}

// RedirectURI returns the redirect URI bound for this attempt.
func (p *PendingAuthorization) RedirectURI() string {
	return p.server.RedirectURI()
}

// OpenBrowser launches the system browser at the authorization URL. Failure
// is reported but does not abort the attempt; the URL can be opened manually
// while Wait keeps listening.
func (p *PendingAuthorization) OpenBrowser() error {
	if err := p.flow.openBrowser(p.AuthURL); err != nil {
		return err
	}
	p.setState(FlowBrowserOpened)
	return nil
}

// Wait blocks for the callback, verifies the state nonce, and exchanges the
// authorization code. The listener is torn down unconditionally, on every
// path. The attempt is consumed whether or not it succeeds.
func (p *PendingAuthorization) Wait(ctx context.Context) (*TokenRecord, error) {
	p.mu.Lock()
	if p.consumed {
		p.mu.Unlock()
		return nil, errors.New("authorization attempt already consumed")
	}
	p.consumed = true
	p.st = FlowAwaitingCallback
	p.mu.Unlock()

	defer func() {
		_ = p.server.Stop()
	}()

	result, err := p.server.Wait(ctx, p.flow.waitTimeout)
	if err != nil {
		if errors.Is(err, ErrCallbackTimeout) {
			p.setState(FlowTimedOut)
		} else {
			p.setState(FlowErrorReceived)
		}
		return nil, err
	}

	if result.IsError() {
		p.setState(FlowErrorReceived)
		return nil, &ProviderCallbackError{
			Code:        result.ErrorCode,
			Description: result.ErrorDescription,
		}
	}

	if result.State != p.state {
		logging.Warn("AuthFlow", "State nonce mismatch (expected %d chars, got %d)",
			len(p.state), len(result.State))
		p.setState(FlowErrorReceived)
		return nil, ErrStateMismatch
	}

	p.setState(FlowCodeReceived)
	rec, err := p.flow.exchanger.ExchangeCode(ctx, result.Code, p.RedirectURI(), p.pkce.CodeVerifier)
	if err != nil {
		return nil, err
	}

	logging.Info("AuthFlow", "Interactive authentication completed for %s", rec.InstanceURL)
	return rec, nil
}

// Cancel tears down the listener without waiting. Used when the caller
// abandons the attempt before calling Wait.
func (p *PendingAuthorization) Cancel() {
	p.mu.Lock()
	p.consumed = true
	p.mu.Unlock()
	_ = p.server.Stop()
}

func (p *PendingAuthorization) setState(s FlowState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.st = s
}

func (f *BrowserFlow) scope() string {
	if f.cfg.Scope != "" {
		return f.cfg.Scope
	}
	return config.DefaultScope
}

func (f *BrowserFlow) buildAuthorizationURL(redirectURI, state string, pkce *oauth.PKCEChallenge) (string, error) {
	authURL, err := url.Parse(f.cfg.AuthorizeURL())
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}

	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {f.cfg.ConsumerKey},
		"redirect_uri":          {redirectURI},
		"scope":                 {f.scope()},
		"state":                 {state},
		"code_challenge":        {pkce.CodeChallenge},
		"code_challenge_method": {pkce.CodeChallengeMethod},
	}
	authURL.RawQuery = params.Encode()
	return authURL.String(), nil
}

// JWTFlow is the non-interactive server-to-server flow: mint a fresh
// assertion, exchange it. No refresh token is ever issued on this path, so
// re-authentication is simply running it again.
type JWTFlow struct {
	signer    *AssertionSigner
	exchanger *Exchanger
}

// NewJWTFlow creates a flow from a signer and exchanger.
func NewJWTFlow(signer *AssertionSigner, exchanger *Exchanger) *JWTFlow {
	return &JWTFlow{signer: signer, exchanger: exchanger}
}

// Authenticate mints and exchanges one assertion. Signing failures surface
// before any network call.
func (f *JWTFlow) Authenticate(ctx context.Context) (*TokenRecord, error) {
	assertion, err := f.signer.Sign()
	if err != nil {
		return nil, err
	}

	rec, err := f.exchanger.ExchangeAssertion(ctx, assertion)
	if err != nil {
		return nil, err
	}

	logging.Info("AuthFlow", "JWT-bearer authentication completed for %s", rec.InstanceURL)
	return rec, nil
}
