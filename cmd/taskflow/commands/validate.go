package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/tasklist"
)

func (c *CLI) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <task-list.md>",
		Short: "Check a task list without running it",
		Long: `Parse a task list and run the checks a run would perform: unique task
names, target files inside the repository, and file-scope collisions between
independent tasks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			tasks, err := tasklist.NewFile(args[0]).Load()
			if err != nil {
				return err
			}
			if err := tasklist.ValidateNames(tasks); err != nil {
				return err
			}

			ec := cfg.EngineConfig()
			independent := tasklist.PendingIndependent(tasks)
			warnings, err := tasklist.ValidateDisjoint(independent, ec.RepoRoot, ec.ScopePolicy)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				if _, err := tasklist.NormalizeFiles(ec.RepoRoot, t); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fundamental := tasklist.PendingFundamental(tasks)
			fmt.Fprintf(out, "%d tasks: %d pending fundamental, %d pending independent, %d complete\n",
				len(tasks), len(fundamental), len(independent), len(tasks)-len(fundamental)-len(independent))

			for _, w := range warnings {
				fmt.Fprintf(out, "%s %s\n", styleWarn.Render("warning:"), w)
			}
			if len(warnings) > 0 {
				fmt.Fprintf(out, "Colliding tasks will not run at the same time.\n")
			}

			fmt.Fprintln(out, styleSuccess.Render("OK"))
			return nil
		},
	}
}

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-list.md>",
		Short: "Show pending tasks in execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := tasklist.NewFile(args[0]).Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fundamental := tasklist.PendingFundamental(tasks)
			independent := tasklist.PendingIndependent(tasks)

			if len(fundamental)+len(independent) == 0 {
				fmt.Fprintln(out, "All tasks are complete")
				return nil
			}

			if len(fundamental) > 0 {
				fmt.Fprintln(out, styleTask.Render("Phase 1 (sequential):"))
				for i, t := range fundamental {
					order := ""
					if t.HasExplicitOrder() {
						order = fmt.Sprintf(" [order %d]", t.DependencyOrder)
					}
					fmt.Fprintf(out, "  %d. %s%s\n", i+1, t.Name, order)
				}
			}

			if len(independent) > 0 {
				fmt.Fprintln(out, styleTask.Render("Phase 2 (parallel):"))
				for _, t := range independent {
					detail := ""
					if len(t.TargetFiles) > 0 {
						detail = " (" + strings.Join(t.TargetFiles, ", ") + ")"
					}
					if t.GroupID != "" {
						detail += " [" + t.GroupID + "]"
					}
					fmt.Fprintf(out, "  - %s%s\n", t.Name, detail)
				}
			}
			return nil
		},
	}
}
