package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reportpull/sfauth/internal/auth"
	"github.com/reportpull/sfauth/internal/config"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// Status-specific flags
var (
	statusWatch bool
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long: `Show the current authentication status.

This command displays whether stored credentials exist, when the access
token expires, whether a refresh token is available, and where credentials
are persisted. It never launches a browser and never calls the provider.

Examples:
  sfauth status                        # Show current status
  sfauth status --watch                # Re-render when another process logs in or out`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Re-render when the credential store changes")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := renderStatus(cfg); err != nil {
		return err
	}
	if !statusWatch {
		return nil
	}

	path, err := auth.DefaultTokenFilePath(serviceID(cfg))
	if err != nil {
		return err
	}

	watcher := auth.NewStoreWatcher(auth.StoreWatcherConfig{
		Path: path,
		OnChange: func() {
			authPrint("\nCredential store changed at %s\n\n", time.Now().Format("15:04:05"))
			if err := renderStatus(cfg); err != nil {
				authPrint("  Error: %v\n", err)
			}
		},
	})
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to watch credential store: %w", err)
	}
	defer func() {
		_ = watcher.Stop()
	}()

	authPrintln("\nWatching for credential changes. Press Ctrl+C to stop.")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}

// renderStatus prints one snapshot of the stored credential state. It builds a
// fresh manager per render so an external login or logout is always reflected.
func renderStatus(cfg config.Config) error {
	manager, err := auth.NewManager(cfg, auth.WithNonInteractive())
	if err != nil {
		return err
	}

	authPrintln("Salesforce Credentials")
	authPrint("  Login:     %s\n", cfg.LoginURL())
	authPrint("  Method:    %s\n", cfg.AuthMethod)

	rec := manager.CurrentRecord()
	switch {
	case rec == nil:
		authPrint("  Status:    %s\n", text.FgYellow.Sprint("Not authenticated"))
		authPrint("             Run: sfauth login\n")
	case manager.IsValid():
		authPrint("  Status:    %s\n", text.FgGreen.Sprint("Authenticated"))
		printRecordDetails(rec)
	default:
		authPrint("  Status:    %s\n", text.FgYellow.Sprint("Expired"))
		printRecordDetails(rec)
		if rec.RefreshToken != "" {
			authPrint("             Run: sfauth token --refresh\n")
		} else {
			authPrint("             Run: sfauth login\n")
		}
	}

	if path, err := auth.DefaultTokenFilePath(serviceID(cfg)); err == nil {
		authPrint("  Store:     OS keychain (file fallback: %s)\n", path)
	}
	return nil
}

// printRecordDetails prints the fields shared by the authenticated and expired
// states.
func printRecordDetails(rec *auth.TokenRecord) {
	if rec.InstanceURL != "" {
		authPrint("  Instance:  %s\n", rec.InstanceURL)
	}
	if !rec.ExpiresAt.IsZero() {
		authPrint("  Expires:   %s\n", formatExpiryWithDirection(rec.ExpiresAt))
	}
	if rec.RefreshToken != "" {
		authPrint("  Refresh:   %s\n", text.FgGreen.Sprint("Available"))
	} else {
		authPrint("  Refresh:   %s\n", text.FgYellow.Sprint("Not available (re-auth required on expiry)"))
	}
}
