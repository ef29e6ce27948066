package auth

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/reportpull/sfauth/pkg/logging"
)

//go:embed templates/*.html
var callbackPages embed.FS

var pageTemplates = template.Must(
	template.New("callback").Funcs(sprig.HtmlFuncMap()).ParseFS(callbackPages, "templates/*.html"))

const (
	// CallbackPath is the route the provider redirects back to.
	CallbackPath = "/callback"

	// DefaultCallbackWait bounds how long the flow waits for the user to
	// complete the browser interaction.
	DefaultCallbackWait = 5 * time.Minute

	// CallbackPortRange is how many consecutive ports are tried from the
	// configured start port.
	CallbackPortRange = 10

	// responseGrace keeps the server alive briefly after the callback so the
	// browser receives the rendered page before the listener closes.
	responseGrace = 1 * time.Second

	// shutdownTimeout bounds graceful server shutdown.
	shutdownTimeout = 5 * time.Second
)

// CallbackResult carries the query parameters of the single authorization
// callback.
type CallbackResult struct {
	Code             string
	State            string
	ErrorCode        string
	ErrorDescription string
}

// IsError returns true when the provider reported an error instead of a code.
func (r CallbackResult) IsError() bool {
	return r.ErrorCode != ""
}

// CallbackServer is a one-shot localhost HTTP listener for the authorization
// redirect. Exactly one callback is delivered; later requests still get a
// page but change nothing. The server always tears down, whether the flow
// ends in success, provider error, timeout, or cancellation.
type CallbackServer struct {
	listener net.Listener
	server   *http.Server
	port     int

	resultCh chan CallbackResult
	errorCh  chan error

	deliverOnce sync.Once
	stopOnce    sync.Once
}

// NewCallbackServer binds the first free port in
// [startPort, startPort+CallbackPortRange) on localhost. Failure to bind any
// of them is local misconfiguration and reported before the provider is ever
// contacted.
func NewCallbackServer(startPort int) (*CallbackServer, error) {
	var lastErr error
	for port := startPort; port < startPort+CallbackPortRange; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			lastErr = err
			logging.Debug("Callback", "Port %d unavailable: %v", port, err)
			continue
		}

		s := &CallbackServer{
			listener: listener,
			port:     port,
			resultCh: make(chan CallbackResult, 1),
			errorCh:  make(chan error, 1),
		}

		mux := http.NewServeMux()
		mux.HandleFunc(CallbackPath, s.handleCallback)
		s.server = &http.Server{
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		logging.Debug("Callback", "Listening on 127.0.0.1:%d", port)
		return s, nil
	}

	return nil, &CallbackPortError{StartPort: startPort, Attempts: CallbackPortRange, Err: lastErr}
}

// Port returns the bound port.
func (s *CallbackServer) Port() int {
	return s.port
}

// RedirectURI returns the exact redirect URI to register with the provider
// and to repeat during code exchange.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://localhost:%d%s", s.port, CallbackPath)
}

// Start begins serving in the background. Context cancellation stops the
// server.
func (s *CallbackServer) Start(ctx context.Context) {
	go func() {
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errorCh <- fmt.Errorf("callback server failed: %w", err):
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()
}

// Wait blocks until the callback arrives, the timeout elapses, or the context
// is canceled. A timeout of zero means DefaultCallbackWait.
func (s *CallbackServer) Wait(ctx context.Context, timeout time.Duration) (CallbackResult, error) {
	if timeout <= 0 {
		timeout = DefaultCallbackWait
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return CallbackResult{}, err
	case <-timer.C:
		logging.Warn("Callback", "No callback within %s", timeout)
		return CallbackResult{}, ErrCallbackTimeout
	case <-ctx.Done():
		return CallbackResult{}, ctx.Err()
	}
}

// Stop shuts the server down gracefully, falling back to closing the
// listener. Safe to call multiple times.
func (s *CallbackServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = s.listener.Close()
			if errors.Is(err, net.ErrClosed) {
				err = nil
			}
		}
		logging.Debug("Callback", "Callback server on port %d stopped", s.port)
	})
	return err
}

// handleCallback processes the provider redirect. The outcome is always
// delivered, including on an internal panic, so the waiting flow can never
// hang on a callback that technically arrived.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.deliver(CallbackResult{}, fmt.Errorf("callback handling panicked: %v", rec))
		}
	}()

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	query := r.URL.Query()
	result := CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		ErrorCode:        query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	switch {
	case result.IsError():
		logging.Warn("Callback", "Provider returned error: %s", result.ErrorCode)
		w.WriteHeader(http.StatusOK)
		s.renderPage(w, "callback_error.html", map[string]string{
			"Code":        result.ErrorCode,
			"Description": result.ErrorDescription,
		})
		s.deliver(result, nil)

	case result.Code != "":
		logging.Debug("Callback", "Authorization code received (state present: %t)", result.State != "")
		w.WriteHeader(http.StatusOK)
		s.renderPage(w, "callback_success.html", map[string]string{
			"Service": "Salesforce",
		})
		s.deliver(result, nil)

	default:
		logging.Warn("Callback", "Malformed callback: neither code nor error present")
		w.WriteHeader(http.StatusBadRequest)
		s.renderPage(w, "callback_error.html", map[string]string{
			"Code":        "invalid_callback",
			"Description": "The callback carried neither an authorization code nor an error report.",
		})
		s.deliver(CallbackResult{}, &CallbackMalformedError{Query: r.URL.RawQuery})
	}
}

// deliver hands the outcome to the waiting flow exactly once and schedules
// teardown after the response has had a moment to flush.
func (s *CallbackServer) deliver(result CallbackResult, err error) {
	s.deliverOnce.Do(func() {
		if err != nil {
			s.errorCh <- err
		} else {
			s.resultCh <- result
		}
		time.AfterFunc(responseGrace, func() {
			_ = s.Stop()
		})
	})
}

func (s *CallbackServer) renderPage(w http.ResponseWriter, name string, data map[string]string) {
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		logging.Error("Callback", err, "Failed to render callback page")
	}
}
