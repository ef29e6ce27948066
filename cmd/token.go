package cmd

import (
	"fmt"

	"github.com/reportpull/sfauth/internal/auth"
	"github.com/reportpull/sfauth/internal/cli"

	"github.com/spf13/cobra"
)

// Token-specific flags
var (
	tokenRefresh bool
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a valid access token",
	Long: `Print a valid access token to stdout for scripting.

An expired token is refreshed automatically. When re-authentication is
required (no refresh token, or the provider rejected it) the command exits
with code 2 instead of launching a browser; the jwt method re-authenticates
in place since it needs no user present.

Examples:
  sfauth token                         # Print a valid token
  sfauth token --refresh               # Force a refresh first
  curl -H "Authorization: Bearer $(sfauth token)" "$SF_INSTANCE_URL/services/data/"`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().BoolVar(&tokenRefresh, "refresh", false, "Discard the cached access token and refresh before printing")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidatedConfig()
	if err != nil {
		return err
	}

	manager, err := auth.NewManager(cfg, auth.WithNonInteractive())
	if err != nil {
		return err
	}

	if tokenRefresh {
		manager.Invalidate()
	}

	rec, err := manager.GetValidToken(cmd.Context())
	if err != nil {
		if auth.IsAuthRequired(err) {
			return &cli.AuthRequiredError{Reason: err}
		}
		return err
	}

	// The token is the command's output, so it prints regardless of --quiet.
	fmt.Println(rec.AccessToken)
	return nil
}
