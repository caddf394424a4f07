package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/journal"
)

func (c *CLI) newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Journal.Path == "" {
				return fmt.Errorf("no journal path configured")
			}

			ctx := cmd.Context()
			store, err := journal.NewSQLiteStore(ctx, cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			if runID, _ := cmd.Flags().GetString("run"); runID != "" {
				outcomes, err := store.Outcomes(ctx, runID)
				if err != nil {
					return err
				}
				if len(outcomes) == 0 {
					fmt.Fprintf(out, "No outcomes recorded for run %s\n", runID)
					return nil
				}

				t := table.New().
					Border(lipgloss.NormalBorder()).
					Headers("#", "TASK", "STATUS", "ATTEMPTS", "DURATION", "ERROR")
				for _, o := range outcomes {
					t.Row(strconv.Itoa(o.TaskIndex), o.TaskName, o.Status, strconv.Itoa(o.Attempts), o.Duration.Round(time.Millisecond).String(), o.Error)
				}
				fmt.Fprintln(out, t.Render())
				return nil
			}

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("RUN", "STARTED", "TASK LIST", "BACKEND", "STATUS", "FAILED")
			for _, r := range runs {
				status := r.Status
				if r.AbortedEarly {
					status += " (aborted)"
				}
				t.Row(r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.TaskList, r.Backend, status, strconv.Itoa(r.Failed))
			}
			fmt.Fprintln(out, t.Render())
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 10, "number of runs to show (0 for all)")
	cmd.Flags().String("run", "", "show task outcomes of one run")
	return cmd
}
