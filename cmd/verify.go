package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/reportpull/sfauth/internal/auth"
	"github.com/reportpull/sfauth/internal/cli"
	"github.com/reportpull/sfauth/internal/session"
	"github.com/reportpull/sfauth/internal/sfapi"
	pkgstrings "github.com/reportpull/sfauth/pkg/strings"

	"github.com/briandowns/spinner"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// DefaultVerifyWorkers is how many concurrent workers probe the org when
// --workers is not given.
const DefaultVerifyWorkers = 4

// Verify-specific flags
var (
	verifyWorkers int
	verifyPlain   bool
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify credentials and per-worker session isolation",
	Long: `Verify that stored credentials work against the org.

Several workers run concurrently, each with its own execution context and
its own pooled HTTP session. Every worker lists the available REST API
versions and runs a one-row query against the Organization object. A
failure in one worker does not stop the others.

Examples:
  sfauth verify                        # Probe with the default worker count
  sfauth verify --workers 10           # Heavier concurrency
  sfauth verify --plain                # Script-friendly table output`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().IntVar(&verifyWorkers, "workers", DefaultVerifyWorkers, "Number of concurrent probe workers")
	verifyCmd.Flags().BoolVar(&verifyPlain, "plain", false, "Plain kubectl-style table output without borders or colors")
}

// verifyResult is one worker's probe outcome.
type verifyResult struct {
	worker    int
	contextID string
	org       string
	versions  int
	latency   time.Duration
	err       error
}

func runVerify(cmd *cobra.Command, args []string) error {
	if verifyWorkers < 1 {
		return fmt.Errorf("--workers must be at least 1, got %d", verifyWorkers)
	}

	cfg, err := loadValidatedConfig()
	if err != nil {
		return err
	}

	manager, err := auth.NewManager(cfg, auth.WithNonInteractive())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	// Resolve the token once before spawning workers so a missing or dead
	// credential fails with the auth exit code instead of N identical rows.
	if _, err := manager.GetValidToken(ctx); err != nil {
		if auth.IsAuthRequired(err) {
			return &cli.AuthRequiredError{Reason: err}
		}
		return err
	}

	registry := session.NewRegistry()
	defer func() {
		_ = registry.CloseAll()
	}()

	var s *spinner.Spinner
	if !rootQuiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Probing org with %d workers...", verifyWorkers)
		s.Start()
	}

	results := make([]verifyResult, verifyWorkers)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < verifyWorkers; i++ {
		i := i // per-iteration copy; the module builds with Go 1.21 loop scoping
		g.Go(func() error {
			contextID := fmt.Sprintf("verify-%d-%s", i+1, uuid.NewString()[:8])
			client := sfapi.NewClient(contextID, manager, registry,
				sfapi.WithAPIVersion(cfg.APIVersion))

			start := time.Now()
			res := verifyResult{worker: i + 1, contextID: contextID}

			versions, err := client.Versions(gctx)
			if err == nil {
				res.versions = len(versions)
				var org *sfapi.OrgInfo
				if org, err = client.TestConnection(gctx); err == nil {
					res.org = org.Name
				}
			}

			res.latency = time.Since(start)
			res.err = err
			results[i] = res
			// Outcomes travel through results so one failed worker does not
			// cancel its siblings mid-probe.
			return nil
		})
	}
	_ = g.Wait()

	if s != nil {
		s.Stop()
	}

	renderVerifyResults(results)

	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d workers failed", failed, verifyWorkers)
	}

	authPrint("\n%s %d workers verified against isolated sessions.\n",
		text.FgGreen.Sprint("✓"), verifyWorkers)
	return nil
}

// renderVerifyResults prints one row per worker, rich or plain.
func renderVerifyResults(results []verifyResult) {
	if verifyPlain {
		w := cli.NewPlainTableWriter(os.Stdout)
		w.SetHeaders([]string{"WORKER", "CONTEXT", "ORG", "VERSIONS", "LATENCY", "STATUS"})
		for _, res := range results {
			w.AppendRow([]string{
				fmt.Sprintf("%d", res.worker),
				res.contextID,
				res.org,
				fmt.Sprintf("%d", res.versions),
				res.latency.Round(time.Millisecond).String(),
				plainVerifyStatus(res.err),
			})
		}
		w.Render()
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"WORKER", "CONTEXT", "ORG", "VERSIONS", "LATENCY", "STATUS"})
	for _, res := range results {
		t.AppendRow(table.Row{
			res.worker,
			res.contextID,
			res.org,
			res.versions,
			res.latency.Round(time.Millisecond),
			colorVerifyStatus(res.err),
		})
	}
	t.Render()
}

// Error chains are flattened to one line so a failed worker does not wreck
// the table.
func plainVerifyStatus(err error) string {
	if err != nil {
		return "FAILED: " + pkgstrings.OneLine(err.Error(), pkgstrings.DefaultStatusMaxLen)
	}
	return "OK"
}

func colorVerifyStatus(err error) string {
	if err != nil {
		return text.FgRed.Sprint("FAILED: " + pkgstrings.OneLine(err.Error(), pkgstrings.DefaultStatusMaxLen))
	}
	return text.FgGreen.Sprint("OK")
}
