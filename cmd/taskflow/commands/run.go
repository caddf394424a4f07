package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/taskflow/internal/backend"
	"github.com/aristath/taskflow/internal/config"
	"github.com/aristath/taskflow/internal/engine"
	"github.com/aristath/taskflow/internal/events"
	"github.com/aristath/taskflow/internal/journal"
	"github.com/aristath/taskflow/internal/logging"
	"github.com/aristath/taskflow/internal/tasklist"
	"github.com/aristath/taskflow/internal/tui"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <task-list.md>",
		Short: "Execute the pending tasks of a task list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return c.runTasks(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], output)
		},
	}
	cmd.Flags().StringP("output", "o", OutputAuto, "output mode: auto, tui or plain")
	cmd.Flags().IntP("parallel", "p", 0, "maximum concurrent independent tasks (1-5)")
	cmd.Flags().Bool("fail-fast", true, "stop scheduling tasks after the first failure")
	cmd.Flags().Int("max-corrections", 0, "self-correction attempts per failed task (0-10)")
	cmd.Flags().String("subagent", "", "subagent the backend should delegate every task to")
	for _, name := range []string{"parallel", "fail-fast", "max-corrections", "subagent"} {
		c.bind(cmd, name)
	}
	return cmd
}

func (c *CLI) runTasks(ctx context.Context, out, errOut io.Writer, path, output string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	mode, err := c.resolveOutput(output)
	if err != nil {
		return err
	}

	file := tasklist.NewFile(path)
	tasks, err := file.Load()
	if err != nil {
		return err
	}

	logger, closeLog, err := newRunLogger(cfg, mode, errOut)
	if err != nil {
		return err
	}
	defer closeLog.Close()

	bcfg, err := cfg.BackendConfig("")
	if err != nil {
		return err
	}
	factory, err := backend.NewFactory(bcfg, c.pm)
	if err != nil {
		return fmt.Errorf("creating backend: %w", err)
	}

	stream := events.NewStream()
	eng, err := engine.New(cfg.EngineConfig(), factory, stream, logger)
	if err != nil {
		return err
	}
	state := engine.NewSharedRunState(tasks, file)

	var handlers []events.Handler

	var (
		rec   *journal.Recorder
		store *journal.SQLiteStore
	)
	// Outcomes of an interrupted run are still worth recording.
	journalCtx := context.WithoutCancel(ctx)
	if cfg.Journal.Enabled {
		store, err = journal.NewSQLiteStore(ctx, cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		runID, err := store.BeginRun(journalCtx, path, bcfg.Type)
		if err != nil {
			return err
		}
		rec = journal.NewRecorder(journalCtx, store, runID, logger)
		handlers = append(handlers, rec.Handle)
		logger.Info("journal run started", "run_id", runID, "path", cfg.Journal.Path)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		program *tea.Program
		tuiDone chan error
	)
	if mode == OutputTUI {
		program = tea.NewProgram(tui.New(path, runOrder(tasks)), tea.WithAltScreen())
		tuiDone = make(chan error, 1)
		go func() {
			_, err := program.Run()
			// Quitting the view stops the run.
			cancel()
			tuiDone <- err
		}()
		handlers = append(handlers, func(ev events.TaskEvent) {
			program.Send(ev)
		})
	} else {
		handlers = append(handlers, newPrinter(out).Handle)
	}

	var (
		report *engine.Report
		runErr error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		report, runErr = eng.Run(runCtx, state)
	}()

	// The engine closes the stream when Run returns.
	if err := stream.Consume(context.Background(), events.Fanout(handlers...)); err != nil {
		logger.Error("event consumer stopped", "error", err)
	}
	<-finished

	if program != nil {
		if ctx.Err() != nil {
			program.Quit()
		}
		if err := <-tuiDone; err != nil {
			logger.Error("tui exited with error", "error", err)
		}
	}

	if rec != nil && rec.Err() != nil {
		fmt.Fprintf(errOut, "Warning: journal incomplete: %v\n", rec.Err())
	}

	if report == nil {
		// The task list was rejected before any event was emitted.
		if rec != nil {
			if err := store.FinishRun(journalCtx, rec.RunID(), nil, true); err != nil {
				logger.Error("failed to close journal run", "error", err)
			}
		}
		return runErr
	}
	printSummary(out, report, rec)
	if runErr != nil {
		return runErr
	}
	if !report.Succeeded() {
		return fmt.Errorf("%d task(s) failed: %s", len(report.Failed), strings.Join(report.Failed, ", "))
	}
	return nil
}

// newRunLogger logs to a file while the TUI owns the terminal, and to stderr
// otherwise.
func newRunLogger(cfg *config.Config, mode string, errOut io.Writer) (*slog.Logger, io.Closer, error) {
	if mode == OutputTUI {
		logger, closer, err := logging.NewFile(cfg.Logging.Dir, cfg.Logging.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		return logger, closer, nil
	}
	return logging.New(errOut, cfg.Logging.Level, false), nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// runOrder lists pending tasks in the order the engine indexes them.
func runOrder(tasks []tasklist.Task) []string {
	var names []string
	for _, t := range tasklist.PendingFundamental(tasks) {
		names = append(names, t.Name)
	}
	for _, t := range tasklist.PendingIndependent(tasks) {
		names = append(names, t.Name)
	}
	return names
}
