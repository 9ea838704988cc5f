package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/handiism/songsync/internal/logging"
	"github.com/handiism/songsync/internal/pipeline"
)

func main() {
	logger := logging.New(os.Stderr, false)

	// Handle interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, stopping after the current track...")
		cancel()
		<-sigCh
		fmt.Fprintln(os.Stderr, "Interrupted again, exiting now")
		os.Exit(130)
	}()

	runner := NewRunner(RunnerOpts{Logger: logger})

	if err := runner.command().Run(ctx, os.Args); err != nil {
		switch {
		case errors.Is(err, errInterrupted):
			os.Exit(130)
		case pipeline.IsSetupError(err):
			logger.Error("cannot start", "err", err)
		default:
			logger.Error("application error", "err", err)
		}
		os.Exit(1)
	}
}
