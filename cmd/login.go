package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/reportpull/sfauth/internal/auth"
	"github.com/reportpull/sfauth/internal/cli"
	"github.com/reportpull/sfauth/internal/config"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// Login-specific flags
var (
	loginMethod  string
	loginTimeout time.Duration
	loginNoOpen  bool
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate to Salesforce",
	Long: `Authenticate to Salesforce and store the issued credentials.

The browser method runs the authorization-code flow with PKCE: a one-shot
callback listener is bound on localhost, your browser is sent to the
authorization endpoint, and the returned code is exchanged for tokens. The
jwt method signs an assertion with the configured private key and exchanges
it without any user interaction.

Examples:
  sfauth login                         # Run the configured flow
  sfauth login --method jwt            # Force the JWT-bearer flow
  sfauth login --timeout 10m           # Wait longer for the callback
  sfauth login --no-open               # Print the URL instead of launching a browser`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVar(&loginMethod, "method", "", "Auth method to use: browser or jwt (default from config)")
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", auth.DefaultCallbackWait, "How long to wait for the authorization callback")
	loginCmd.Flags().BoolVar(&loginNoOpen, "no-open", false, "Print the authorization URL instead of launching the browser")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if loginMethod != "" {
		cfg.AuthMethod = config.AuthMethod(loginMethod)
	}
	// Validate catches an unknown --method value along with missing fields.
	if err := config.Validate(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	exchanger := auth.NewExchanger(cfg)

	var rec *auth.TokenRecord
	switch cfg.AuthMethod {
	case config.AuthMethodJWT:
		rec, err = runJWTLogin(ctx, cfg, exchanger)
	default:
		rec, err = runBrowserLogin(ctx, cfg, exchanger)
	}
	if err != nil {
		return &cli.AuthFailedError{Method: string(cfg.AuthMethod), Reason: err}
	}

	store, err := auth.NewDefaultStore(serviceID(cfg))
	if err != nil {
		return err
	}
	if err := store.Save(rec); err != nil {
		return fmt.Errorf("authenticated, but failed to persist credentials: %w", err)
	}

	authPrint("%s Authenticated to %s\n", text.FgGreen.Sprint("✓"), rec.InstanceURL)
	if !rec.ExpiresAt.IsZero() {
		authPrint("  Expires:   %s\n", formatExpiryWithDirection(rec.ExpiresAt))
	}
	if rec.RefreshToken != "" {
		authPrint("  Refresh:   %s\n", text.FgGreen.Sprint("Available"))
	} else {
		authPrint("  Refresh:   %s\n", text.FgYellow.Sprint("Not available (re-auth required on expiry)"))
	}
	return nil
}

// runBrowserLogin drives the interactive flow: bind the listener, get the user
// to the authorization URL, and wait for the redirect.
func runBrowserLogin(ctx context.Context, cfg config.Config, exchanger *auth.Exchanger) (*auth.TokenRecord, error) {
	flow := auth.NewBrowserFlow(cfg, exchanger, auth.WithCallbackWait(loginTimeout))

	pending, err := flow.Begin(ctx)
	if err != nil {
		return nil, err
	}

	if loginNoOpen {
		// --no-open still needs the URL even under --quiet, otherwise the
		// flow cannot be completed at all.
		fmt.Printf("Open this URL in your browser:\n  %s\n\n", pending.AuthURL)
	} else {
		authPrintln("Opening browser for authentication...")
		if err := pending.OpenBrowser(); err != nil {
			authPrintln("Could not open browser automatically.")
			fmt.Printf("\nPlease open this URL in your browser:\n  %s\n\n", pending.AuthURL)
		}
	}

	var s *spinner.Spinner
	if !rootQuiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Waiting for authorization..."
		s.Start()
	}
	rec, err := pending.Wait(ctx)
	if s != nil {
		s.Stop()
	}
	return rec, err
}

// runJWTLogin mints and exchanges one assertion. No browser, no waiting.
func runJWTLogin(ctx context.Context, cfg config.Config, exchanger *auth.Exchanger) (*auth.TokenRecord, error) {
	authPrintln("Exchanging signed assertion...")
	flow := auth.NewJWTFlow(auth.NewAssertionSigner(cfg), exchanger)
	return flow.Authenticate(ctx)
}
