package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/tui"
)

func (c *CLI) newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a project or global config file",
		Long: `Write a config file. On an interactive terminal a form asks for the
backend and execution settings, pre-filled from the current config.
With --force, in CI, or without a terminal the defaults are written
to the project config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := c.projectConfigPath()
			if err != nil {
				return err
			}

			force, _ := cmd.Flags().GetBool("force")
			if !force && c.interactive() {
				return c.initInteractive(cmd, path)
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := config.Save(config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "write the defaults without prompting, overwriting an existing file")
	return cmd
}

// initInteractive edits the effective config in the settings form and saves
// it to the chosen target.
func (c *CLI) initInteractive(cmd *cobra.Command, projectPath string) error {
	globalPath, _, err := config.DefaultPaths()
	if err != nil {
		return err
	}

	cfg, err := config.Load(globalPath, projectPath)
	if err != nil {
		return err
	}

	settings := tui.NewSettings(cfg, globalPath, projectPath)
	if err := c.editSettings(settings); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled, nothing written")
			return nil
		}
		return fmt.Errorf("settings form: %w", err)
	}

	settings.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	path := settings.Path()
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
