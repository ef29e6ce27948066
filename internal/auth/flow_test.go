package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/reportpull/sfauth/internal/config"
	"github.com/reportpull/sfauth/pkg/oauth"
)

func flowConfig(portStart int) config.Config {
	return config.Config{
		Environment:       config.EnvironmentProduction,
		ConsumerKey:       "3MVG9consumer",
		Scope:             "full",
		CallbackPortStart: portStart,
	}
}

// simulateProvider performs the role of the authorization server: read the
// parameters from the authorization URL and redirect the "browser" back.
func simulateProvider(t *testing.T, authURL, query string) url.Values {
	t.Helper()

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("authorization URL unparseable: %v", err)
	}
	params := parsed.Query()

	redirect := params.Get("redirect_uri")
	if redirect == "" {
		t.Fatal("authorization URL missing redirect_uri")
	}
	resp, err := http.Get(redirect + "?" + query)
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	resp.Body.Close()
	return params
}

func TestBrowserFlow_EndToEnd(t *testing.T) {
	var exchangeCalls atomic.Int32
	var challenge atomic.Value

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchangeCalls.Add(1)
		r.ParseForm()
		if got := r.PostForm.Get("code"); got != "grantedcode" {
			t.Errorf("code = %q, want grantedcode", got)
		}
		ch, _ := challenge.Load().(string)
		if !oauth.VerifyChallenge(r.PostForm.Get("code_verifier"), ch) {
			t.Error("code_verifier does not match the challenge sent during authorization")
		}
		w.Write([]byte(`{
			"access_token": "00Dxx!access",
			"refresh_token": "5Aexx.refresh",
			"instance_url": "https://acme.my.salesforce.com",
			"expires_in": 7200
		}`))
	}))
	defer tokenServer.Close()

	cfg := flowConfig(39080)
	flow := NewBrowserFlow(cfg, NewExchanger(cfg, WithTokenURL(tokenServer.URL)))

	pending, err := flow.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	defer pending.Cancel()

	if pending.State() != FlowPortBound {
		t.Errorf("state after Begin = %s, want port_bound", pending.State())
	}
	if !strings.HasPrefix(pending.AuthURL, "https://login.salesforce.com/services/oauth2/authorize?") {
		t.Errorf("AuthURL = %q, want production authorize endpoint", pending.AuthURL)
	}

	parsed, _ := url.Parse(pending.AuthURL)
	params := parsed.Query()
	if params.Get("response_type") != "code" {
		t.Errorf("response_type = %q", params.Get("response_type"))
	}
	if params.Get("client_id") != "3MVG9consumer" {
		t.Errorf("client_id = %q", params.Get("client_id"))
	}
	if params.Get("scope") != "full" {
		t.Errorf("scope = %q", params.Get("scope"))
	}
	if params.Get("code_challenge_method") != "S256" {
		t.Errorf("code_challenge_method = %q", params.Get("code_challenge_method"))
	}
	if len(params.Get("state")) == 0 {
		t.Error("state parameter missing")
	}
	challenge.Store(params.Get("code_challenge"))

	simulateProvider(t, pending.AuthURL,
		"code=grantedcode&state="+url.QueryEscape(params.Get("state")))

	rec, err := pending.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if pending.State() != FlowCodeReceived {
		t.Errorf("state = %s, want code_received", pending.State())
	}
	if rec.AccessToken != "00Dxx!access" {
		t.Errorf("AccessToken = %q", rec.AccessToken)
	}
	if rec.InstanceURL != "https://acme.my.salesforce.com" {
		t.Errorf("InstanceURL = %q", rec.InstanceURL)
	}
	if got := exchangeCalls.Load(); got != 1 {
		t.Errorf("exchange calls = %d, want 1", got)
	}
}

func TestBrowserFlow_Authenticate(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token": "a", "instance_url": "https://x"}`))
	}))
	defer tokenServer.Close()

	var sinkURL string
	cfg := flowConfig(39090)
	flow := NewBrowserFlow(cfg, NewExchanger(cfg, WithTokenURL(tokenServer.URL)),
		WithAuthURLSink(func(u string) { sinkURL = u }),
		WithBrowserOpener(func(authURL string) error {
			parsed, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			q := parsed.Query()
			callback := q.Get("redirect_uri") + "?code=c&state=" + url.QueryEscape(q.Get("state"))
			go func() {
				if resp, err := http.Get(callback); err == nil {
					resp.Body.Close()
				}
			}()
			return nil
		}))

	rec, err := flow.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if rec.AccessToken != "a" {
		t.Errorf("AccessToken = %q", rec.AccessToken)
	}
	if sinkURL == "" {
		t.Error("auth URL sink never invoked")
	}
}

func TestBrowserFlow_BrowserFailureStillCompletes(t *testing.T) {
	// A failed browser launch must not abort the flow: the user can open the
	// printed URL by hand.
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token": "a", "instance_url": "https://x"}`))
	}))
	defer tokenServer.Close()

	var authURL atomic.Value
	cfg := flowConfig(39100)
	flow := NewBrowserFlow(cfg, NewExchanger(cfg, WithTokenURL(tokenServer.URL)),
		WithAuthURLSink(func(u string) {
			authURL.Store(u)
			go func() {
				// The "user" opens the URL manually a moment later.
				time.Sleep(20 * time.Millisecond)
				parsed, _ := url.Parse(u)
				q := parsed.Query()
				callback := q.Get("redirect_uri") + "?code=c&state=" + url.QueryEscape(q.Get("state"))
				if resp, err := http.Get(callback); err == nil {
					resp.Body.Close()
				}
			}()
		}),
		WithBrowserOpener(func(string) error {
			return &BrowserLaunchError{Err: errors.New("no display")}
		}))

	rec, err := flow.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if rec.AccessToken != "a" {
		t.Errorf("AccessToken = %q", rec.AccessToken)
	}
}

func TestBrowserFlow_ProviderError(t *testing.T) {
	var exchangeCalls atomic.Int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchangeCalls.Add(1)
	}))
	defer tokenServer.Close()

	cfg := flowConfig(39110)
	flow := NewBrowserFlow(cfg, NewExchanger(cfg, WithTokenURL(tokenServer.URL)))

	pending, err := flow.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer pending.Cancel()

	simulateProvider(t, pending.AuthURL, "error=access_denied&error_description=user+said+no")

	_, err = pending.Wait(context.Background())
	var provErr *ProviderCallbackError
	if !errors.As(err, &provErr) {
		t.Fatalf("Wait() error = %v, want *ProviderCallbackError", err)
	}
	if provErr.Code != "access_denied" || provErr.Description != "user said no" {
		t.Errorf("ProviderCallbackError = %+v", provErr)
	}
	if pending.State() != FlowErrorReceived {
		t.Errorf("state = %s, want error_received", pending.State())
	}
	if exchangeCalls.Load() != 0 {
		t.Error("token exchange attempted after a provider error")
	}
}

func TestBrowserFlow_StateMismatch(t *testing.T) {
	var exchangeCalls atomic.Int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchangeCalls.Add(1)
	}))
	defer tokenServer.Close()

	cfg := flowConfig(39120)
	flow := NewBrowserFlow(cfg, NewExchanger(cfg, WithTokenURL(tokenServer.URL)))

	pending, err := flow.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer pending.Cancel()

	simulateProvider(t, pending.AuthURL, "code=stolen&state=forged")

	_, err = pending.Wait(context.Background())
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("Wait() error = %v, want ErrStateMismatch", err)
	}
	if exchangeCalls.Load() != 0 {
		t.Error("token exchange attempted despite a forged state")
	}
}

func TestBrowserFlow_Timeout(t *testing.T) {
	cfg := flowConfig(39130)
	flow := NewBrowserFlow(cfg, NewExchanger(cfg),
		WithCallbackWait(50*time.Millisecond))

	pending, err := flow.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	_, err = pending.Wait(context.Background())
	if !errors.Is(err, ErrCallbackTimeout) {
		t.Fatalf("Wait() error = %v, want ErrCallbackTimeout", err)
	}
	if pending.State() != FlowTimedOut {
		t.Errorf("state = %s, want timed_out", pending.State())
	}
}

func TestBrowserFlow_AttemptConsumedOnce(t *testing.T) {
	cfg := flowConfig(39140)
	flow := NewBrowserFlow(cfg, NewExchanger(cfg),
		WithCallbackWait(50*time.Millisecond))

	pending, err := flow.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	_, _ = pending.Wait(context.Background())

	_, err = pending.Wait(context.Background())
	if err == nil || !strings.Contains(err.Error(), "consumed") {
		t.Errorf("second Wait() error = %v, want consumed error", err)
	}
}

func TestBrowserFlow_CancelReleasesPort(t *testing.T) {
	cfg := flowConfig(39150)
	flow := NewBrowserFlow(cfg, NewExchanger(cfg))

	pending, err := flow.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	port := pending.server.Port()
	pending.Cancel()

	// Shutdown is asynchronous; the port frees shortly after Cancel.
	deadline := time.Now().Add(2 * time.Second)
	for {
		next, err := NewCallbackServer(port)
		if err == nil {
			_ = next.Stop()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("port %d still bound after Cancel: %v", port, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestJWTFlow_Authenticate(t *testing.T) {
	keyPath, pubKey := writeTestKey(t)

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if got := r.PostForm.Get("grant_type"); got != oauth.GrantJWTBearer {
			t.Errorf("grant_type = %q", got)
		}
		assertion := r.PostForm.Get("assertion")
		parsed, err := jwt.Parse(assertion, func(tok *jwt.Token) (interface{}, error) {
			return pubKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if err != nil {
			t.Errorf("assertion failed verification: %v", err)
		} else if claims := parsed.Claims.(jwt.MapClaims); claims["iss"] != "3MVG9consumer" {
			t.Errorf("assertion iss = %v", claims["iss"])
		}
		w.Write([]byte(`{"access_token": "jwtaccess", "instance_url": "https://acme.my.salesforce.com"}`))
	}))
	defer tokenServer.Close()

	cfg := signerConfig(keyPath)
	flow := NewJWTFlow(NewAssertionSigner(cfg), NewExchanger(cfg, WithTokenURL(tokenServer.URL)))

	rec, err := flow.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if rec.AccessToken != "jwtaccess" {
		t.Errorf("AccessToken = %q", rec.AccessToken)
	}
	if rec.RefreshToken != "" {
		t.Errorf("RefreshToken = %q, want empty on the jwt-bearer path", rec.RefreshToken)
	}
}

func TestJWTFlow_SigningFailsBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer tokenServer.Close()

	cfg := signerConfig("/nonexistent/key.pem")
	flow := NewJWTFlow(NewAssertionSigner(cfg), NewExchanger(cfg, WithTokenURL(tokenServer.URL)))

	_, err := flow.Authenticate(context.Background())
	var sigErr *SigningError
	if !errors.As(err, &sigErr) {
		t.Fatalf("Authenticate() error = %v, want *SigningError", err)
	}
	if calls.Load() != 0 {
		t.Errorf("token endpoint contacted %d times before signing succeeded", calls.Load())
	}
}

func TestFlowState_String(t *testing.T) {
	states := map[FlowState]string{
		FlowIdle:             "idle",
		FlowPortBound:        "port_bound",
		FlowBrowserOpened:    "browser_opened",
		FlowAwaitingCallback: "awaiting_callback",
		FlowCodeReceived:     "code_received",
		FlowErrorReceived:    "error_received",
		FlowTimedOut:         "timed_out",
		FlowState(99):        "unknown",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("FlowState(%d).String() = %q, want %q", state, got, want)
		}
	}
}
