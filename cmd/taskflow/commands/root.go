// Package commands implements the taskflow CLI commands.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/aristath/taskflow/internal/backend"
	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/tui"
)

// Output modes for the run command.
const (
	OutputAuto  = "auto"
	OutputTUI   = "tui"
	OutputPlain = "plain"
)

// CLI represents the command line interface for taskflow.
type CLI struct {
	pm      *backend.ProcessManager
	v       *viper.Viper
	rootCmd *cobra.Command
	isTTY   func() bool

	// editSettings runs the interactive init form.
	editSettings func(*tui.Settings) error
}

// New creates a new CLI. Agent subprocesses are tracked by pm.
func New(pm *backend.ProcessManager) *CLI {
	rootCmd := &cobra.Command{
		Use:   "taskflow",
		Short: "Run task-list documents through an AI coding agent",
		Long: `taskflow executes the unchecked items of a markdown task list with an
AI coding agent CLI. Fundamental tasks run one at a time in dependency
order; independent tasks with disjoint file scopes run in parallel.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "project config file (default .taskflow/config.json)")
	pf.StringP("backend", "b", "", "backend to use (claude, auggie, cursor, codex, goose or a configured name)")
	pf.String("log-level", "", "log level (DEBUG, INFO, WARN, ERROR)")
	pf.String("repo-root", "", "repository root that task file scopes are relative to")
	pf.String("journal", "", "run journal database path")
	pf.Bool("no-journal", false, "do not record the run in the journal")

	v := viper.New()
	v.SetEnvPrefix("TASKFLOW")
	// e.g. TASKFLOW_LOG_LEVEL for log-level
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for _, name := range []string{"config", "backend", "log-level", "repo-root", "journal", "no-journal"} {
		_ = v.BindPFlag(name, pf.Lookup(name))
	}

	c := &CLI{
		pm:      pm,
		v:       v,
		rootCmd: rootCmd,
		isTTY: func() bool {
			return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
		},
		editSettings: func(s *tui.Settings) error {
			return tui.NewSettingsForm(s).Run()
		},
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newValidateCmd())
	rootCmd.AddCommand(c.newStatusCmd())
	rootCmd.AddCommand(c.newHistoryCmd())
	rootCmd.AddCommand(c.newInitCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects command output. Used for testing.
func (c *CLI) SetOutput(out, errOut io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(errOut)
}

// bind attaches a command-local flag to viper so TASKFLOW_* can set it.
func (c *CLI) bind(cmd *cobra.Command, name string) {
	_ = c.v.BindPFlag(name, cmd.Flags().Lookup(name))
}

// projectConfigPath returns the project config file the CLI reads.
func (c *CLI) projectConfigPath() (string, error) {
	if p := c.v.GetString("config"); p != "" {
		return p, nil
	}
	_, project, err := config.DefaultPaths()
	return project, err
}

// loadConfig merges config files, then flag and environment overrides.
func (c *CLI) loadConfig() (*config.Config, error) {
	global, project, err := config.DefaultPaths()
	if err != nil {
		return nil, err
	}
	if p := c.v.GetString("config"); p != "" {
		project = p
	}

	cfg, err := config.Load(global, project)
	if err != nil {
		return nil, err
	}

	if c.v.IsSet("backend") {
		cfg.Backend = c.v.GetString("backend")
	}
	if c.v.IsSet("log-level") {
		cfg.Logging.Level = c.v.GetString("log-level")
	}
	if c.v.IsSet("repo-root") {
		cfg.Execution.RepoRoot = c.v.GetString("repo-root")
	}
	if c.v.IsSet("journal") {
		cfg.Journal.Path = c.v.GetString("journal")
	}
	if c.v.GetBool("no-journal") {
		cfg.Journal.Enabled = false
	}
	if c.v.IsSet("parallel") {
		cfg.Execution.MaxParallelTasks = c.v.GetInt("parallel")
	}
	if c.v.IsSet("fail-fast") {
		cfg.Execution.FailFast = c.v.GetBool("fail-fast")
	}
	if c.v.IsSet("max-corrections") {
		cfg.Execution.MaxSelfCorrections = c.v.GetInt("max-corrections")
	}
	if c.v.IsSet("subagent") {
		cfg.Execution.Subagent = c.v.GetString("subagent")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveOutput picks the run renderer. Auto uses the TUI only on an
// interactive terminal outside CI.
func (c *CLI) resolveOutput(mode string) (string, error) {
	switch mode {
	case OutputTUI, OutputPlain:
		return mode, nil
	case OutputAuto, "":
		if c.interactive() {
			return OutputTUI, nil
		}
		return OutputPlain, nil
	default:
		return "", fmt.Errorf("unknown output mode %q (want auto, tui or plain)", mode)
	}
}

// interactive reports whether a user is at the terminal.
func (c *CLI) interactive() bool {
	ci := os.Getenv("CI")
	return c.isTTY() && ci != "true" && ci != "1"
}
