package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/reportpull/sfauth/internal/auth"
	"github.com/reportpull/sfauth/internal/cli"
	"github.com/reportpull/sfauth/internal/session"
	"github.com/reportpull/sfauth/internal/sfapi"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// consoleCommandTimeout bounds each API call issued from the console so a
// hung request gives the prompt back.
const consoleCommandTimeout = 30 * time.Second

// consoleCmd represents the console command
var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive API explorer",
	Long: `Explore the org's REST API interactively.

The console issues authenticated calls through the same per-context session
machinery the verify workers use. Tokens refresh transparently between
commands, and an external logout is picked up through the store watcher.

Commands:
  get <path>    GET a REST path and pretty-print the JSON response
  versions      List available REST API versions
  limits        Show org limits with remaining capacity
  whoami        Show the authenticated identity
  token         Print the current access token
  help          Show this list
  exit          Leave the console

Examples:
  sfauth console`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

// console holds the session machinery for one interactive run.
type console struct {
	manager *auth.Manager
	client  *sfapi.Client
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := loadValidatedConfig()
	if err != nil {
		return err
	}

	manager, err := auth.NewManager(cfg, auth.WithNonInteractive())
	if err != nil {
		return err
	}

	// Surface a dead credential before the prompt shows up.
	if _, err := manager.GetValidToken(cmd.Context()); err != nil {
		if auth.IsAuthRequired(err) {
			return &cli.AuthRequiredError{Reason: err}
		}
		return err
	}

	// An external logout or re-login invalidates this process too.
	if err := manager.StartStoreWatcher(); err != nil {
		authPrint("Warning: credential store watching unavailable: %v\n", err)
	}
	defer func() {
		_ = manager.Close()
	}()

	registry := session.NewRegistry()
	defer func() {
		_ = registry.CloseAll()
	}()

	contextID := "console-" + uuid.NewString()[:8]
	c := &console{
		manager: manager,
		client:  sfapi.NewClient(contextID, manager, registry, sfapi.WithAPIVersion(cfg.APIVersion)),
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:              "sfauth> ",
		HistoryFile:         filepath.Join(os.TempDir(), ".sfauth_console_history"),
		AutoComplete:        consoleCompleter(),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	authPrintln("Type 'help' for available commands. Use TAB for completion.")
	fmt.Println()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
		} else if err == io.EOF {
			authPrintln("Goodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			authPrintln("Goodbye!")
			return nil
		}

		if err := c.execute(input); err != nil {
			fmt.Printf("%s %v\n", text.FgRed.Sprint("Error:"), err)
		}
		fmt.Println()
	}
}

// execute parses one console line and dispatches it.
func (c *console) execute(input string) error {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	ctx, cancel := context.WithTimeout(context.Background(), consoleCommandTimeout)
	defer cancel()

	switch name {
	case "help", "?":
		c.printHelp()
		return nil
	case "get":
		if arg == "" {
			return fmt.Errorf("usage: get <path>")
		}
		return c.get(ctx, arg)
	case "versions":
		return c.versions(ctx)
	case "limits":
		return c.limits(ctx)
	case "whoami":
		return c.whoami(ctx)
	case "token":
		return c.token(ctx)
	default:
		return fmt.Errorf("unknown command %q, type 'help' for available commands", name)
	}
}

func (c *console) printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  get <path>    GET a REST path and pretty-print the JSON response")
	fmt.Println("  versions      List available REST API versions")
	fmt.Println("  limits        Show org limits with remaining capacity")
	fmt.Println("  whoami        Show the authenticated identity")
	fmt.Println("  token         Print the current access token")
	fmt.Println("  help          Show this list")
	fmt.Println("  exit          Leave the console")
}

func (c *console) get(ctx context.Context, path string) error {
	body, err := c.client.Get(ctx, path)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		// Not JSON; print what came back.
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func (c *console) versions(ctx context.Context) error {
	versions, err := c.client.Versions(ctx)
	if err != nil {
		return err
	}

	w := cli.NewPlainTableWriter(os.Stdout)
	w.SetHeaders([]string{"VERSION", "LABEL", "URL"})
	for _, v := range versions {
		w.AppendRow([]string{v.Version, v.Label, v.URL})
	}
	w.Render()
	return nil
}

func (c *console) limits(ctx context.Context) error {
	limits, err := c.client.Limits(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(limits))
	for name := range limits {
		names = append(names, name)
	}
	sort.Strings(names)

	w := cli.NewPlainTableWriter(os.Stdout)
	w.SetHeaders([]string{"LIMIT", "REMAINING", "MAX"})
	for _, name := range names {
		l := limits[name]
		w.AppendRow([]string{name, fmt.Sprintf("%d", l.Remaining), fmt.Sprintf("%d", l.Max)})
	}
	w.Render()
	return nil
}

func (c *console) whoami(ctx context.Context) error {
	info, err := c.client.UserInfo(ctx)
	if err != nil {
		return err
	}

	if info.Name != "" {
		fmt.Printf("Name:          %s\n", info.Name)
	}
	if info.Email != "" {
		fmt.Printf("Email:         %s\n", info.Email)
	}
	if info.PreferredUsername != "" {
		fmt.Printf("Username:      %s\n", info.PreferredUsername)
	}
	fmt.Printf("User ID:       %s\n", info.UserID)
	fmt.Printf("Organization:  %s\n", info.OrganizationID)
	return nil
}

func (c *console) token(ctx context.Context) error {
	rec, err := c.manager.GetValidToken(ctx)
	if err != nil {
		return err
	}
	fmt.Println(rec.AccessToken)
	return nil
}

// consoleCompleter builds tab completion for the console commands. The get
// completions seed the common REST entry points.
func consoleCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("?"),
		readline.PcItem("get",
			readline.PcItem("/services/data/"),
			readline.PcItem("sobjects"),
			readline.PcItem("limits"),
			readline.PcItem("query?q="),
		),
		readline.PcItem("versions"),
		readline.PcItem("limits"),
		readline.PcItem("whoami"),
		readline.PcItem("token"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
	)
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}
