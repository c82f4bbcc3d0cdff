package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gonuts/commander"
)

func bistCmd() *commander.Command {
	return &commander.Command{
		UsageLine: "bist <command> [options]",
		Short:     "graph-based dependency parser",
		Subcommands: []*commander.Command{
			trainCmd(),
			parseCmd(),
			evalCmd(),
		},
	}
}

func main() {
	if err := bistCmd().Dispatch(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "bist: %v\n", err)
		os.Exit(1)
	}
}

// signalContext is canceled on SIGINT or SIGTERM so a long Fit stops
// between sentences.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "\nreceived %v, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
