package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/handiism/songsync/internal/ledger"
)

// History prints the per-track outcomes of the most recent run.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	settings, err := r.settings(cmd)
	if err != nil {
		return err
	}

	store, err := ledger.Open(settings.Ledger.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.LastRun()
	if errors.Is(err, ledger.ErrNoRuns) {
		r.writePlainln("No runs recorded in %s", settings.Ledger.Path)
		return nil
	}
	if err != nil {
		return err
	}

	state := cmd.String("state")
	if cmd.Bool("failed") {
		state = "failed"
	}
	entries, err := store.Outcomes(run.ID, state)
	if err != nil {
		return err
	}

	r.writePlainHeader("Run " + run.ID)
	r.writePlainln("Catalogue: %s", run.Catalogue)
	r.writePlainln("Started:   %s", run.StartedAt.Local().Format(time.DateTime))
	if run.FinishedAt.IsZero() {
		r.writePlainln("Finished:  %s", warningStyle.Render("not finished"))
	} else {
		r.writePlainln("Finished:  %s", run.FinishedAt.Local().Format(time.DateTime))
	}
	if run.Force {
		r.writePlainln("Forced:    yes")
	}
	r.writePlainln("")

	if len(entries) == 0 {
		r.writePlainln("No outcomes.")
		return nil
	}
	for _, e := range entries {
		r.writePlainln("%s", renderEntry(e))
	}
	return nil
}

func renderEntry(e ledger.Entry) string {
	line := fmt.Sprintf("%4d  %-8s %s - %s", e.Position, e.State, e.Title, e.Artist)
	if e.Acquired {
		line += " (acquired)"
	}
	if e.Error != "" {
		line += ": " + e.Error
	}

	switch e.State {
	case "done":
		return successStyle.Render(line)
	case "skipped":
		return warningStyle.Render(line)
	case "failed":
		return errorStyle.Render(line)
	}
	return line
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show track outcomes of the last run",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "failed",
				Usage: "Only show failed tracks",
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "Only show tracks in this state (done, skipped, failed)",
			},
		},
		Action: r.History,
	}
}
