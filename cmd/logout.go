package cmd

import (
	"fmt"

	"github.com/reportpull/sfauth/internal/auth"

	"github.com/spf13/cobra"
)

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear stored credentials",
	Long: `Clear stored OAuth credentials.

This removes the access and refresh tokens from the OS keychain and the
fallback token file, requiring a fresh login before the next API call.

Examples:
  sfauth logout`,
	RunE: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manager, err := auth.NewManager(cfg, auth.WithNonInteractive())
	if err != nil {
		return err
	}

	if !manager.HasCredentials() {
		authPrintln("No stored credentials to clear.")
		return nil
	}

	if err := manager.ClearCredentials(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	authPrintln("Logged out. Stored credentials cleared.")
	return nil
}
