package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/handiism/songsync/internal/logging"
	"github.com/handiism/songsync/internal/tui"
)

// TUI launches the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	settings, err := r.settings(cmd)
	if err != nil {
		return err
	}

	// Logs go to a file so they do not interfere with TUI rendering.
	logFile, err := os.OpenFile(cmd.String("log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	opts := tui.Options{
		Settings: settings,
		Logger:   logging.New(logFile, cmd.Bool("verbose")),
		NewApp:   r.newApp,
	}
	if err := tui.Run(opts); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Launch the interactive terminal UI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log",
				Usage: "Log file written while the UI runs",
				Value: "songsync-tui.log",
			},
		},
		Action: r.TUI,
	}
}
