// Package main is the entry point for the taskflow CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/taskflow/cmd/taskflow/commands"
	"github.com/aristath/taskflow/internal/backend"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Every agent subprocess is tracked so a signal can take down whole
	// process groups, not just the direct children.
	pm := backend.NewProcessManager()
	go func() {
		<-ctx.Done()
		// Restore default handling so a second Ctrl+C force-exits.
		stop()
		if err := pm.KillAll(); err != nil {
			fmt.Fprintf(os.Stderr, "Error killing subprocesses: %v\n", err)
		}
	}()

	cli := commands.New(pm)
	cli.SetArgs(args)
	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
