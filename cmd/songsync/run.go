package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/handiism/songsync/internal/app"
	"github.com/handiism/songsync/internal/config"
	"github.com/handiism/songsync/internal/pipeline"
)

const defaultCatalogue = "liked_songs.csv"

// Run processes a catalogue: every track is acquired if missing, enriched
// with genres and lyrics, and tagged.
//
// Usage: songsync run [catalogue] [output]
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	settings, err := r.settings(cmd)
	if err != nil {
		return &pipeline.SetupError{Op: "load config", Err: err}
	}

	cataloguePath := defaultCatalogue
	if cmd.Args().Len() > 0 {
		cataloguePath = cmd.Args().Get(0)
	}
	if cmd.Args().Len() > 1 {
		settings.OutputDir = cmd.Args().Get(1)
	}
	if v := cmd.String("output"); v != "" {
		settings.OutputDir = v
	}
	if v := cmd.String("provider"); v != "" {
		settings.Genre.Provider = v
	}
	if cmd.Bool("no-lyrics") {
		settings.Lyrics.Enabled = false
	}
	if cmd.Bool("playlist") {
		settings.Playlist.Create = true
	}
	if cmd.Bool("prefetch") {
		settings.Genre.Prefetch = true
	}
	verbose := cmd.Bool("verbose")

	a, err := r.newApp(ctx, app.Options{Settings: settings, Logger: r.logger})
	if err != nil {
		return err
	}
	defer a.Close()

	r.writePlainHeader("♫ songsync")
	r.writePlainln("%s", dimStyle.Render(runDescription(cataloguePath, settings)))
	r.writePlainln("")

	summary, err := a.Run(ctx, app.RunOptions{
		Catalogue: cataloguePath,
		Force:     cmd.Bool("force"),
		OnProgress: func(event pipeline.ProgressEvent) {
			if event.Level == pipeline.LevelVerbose && !verbose {
				return
			}
			r.writePlainln("%s", renderEvent(event))
		},
	})
	if err != nil {
		return err
	}

	r.writeSummary(summary, a)
	if summary.Interrupted {
		return errInterrupted
	}
	return nil
}

func runDescription(cataloguePath string, s *config.Settings) string {
	return "catalogue " + cataloguePath + " → " + s.OutputDir + " (genres: " + s.Genre.Provider + ")"
}

func renderEvent(event pipeline.ProgressEvent) string {
	switch event.Level {
	case pipeline.LevelError:
		return errorStyle.Render("✗ " + event.Message)
	case pipeline.LevelWarning:
		return warningStyle.Render("! " + event.Message)
	case pipeline.LevelSuccess:
		return successStyle.Render("✓ " + event.Message)
	case pipeline.LevelInfo:
		return infoStyle.Render("› " + event.Message)
	default:
		return dimStyle.Render("  " + event.Message)
	}
}

func (r *Runner) writeSummary(s pipeline.Summary, a *app.App) {
	r.writePlainln("")
	r.writePlainln("%s", dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	if s.Interrupted {
		r.writePlainln("%s", warningStyle.Render("Run interrupted."))
	} else {
		r.writePlainln("%s", successStyle.Render("✨ Complete!"))
	}
	r.writePlainln("   Processed: %d", s.Processed)
	r.writePlainln("   Tagged:    %d", s.Tagged)
	r.writePlainln("   Acquired:  %d", s.Acquired)
	r.writePlainln("   Skipped:   %d", s.Skipped)
	r.writePlainln("   Failed:    %d", s.Failed)
	r.writePlainln("   Elapsed:   %s", s.Elapsed.Round(time.Second))
	if s.PlaylistPath != "" {
		r.writePlainln("   Playlist:  %s", s.PlaylistPath)
	}
	if s.RunID != "" {
		r.writePlainln("   Run:       %s", s.RunID)
	}

	stats := a.GenreStats()
	r.logger.Debug("genre lookups",
		"identify", stats.IdentifyCalls, "lookup", stats.LookupCalls,
		"cache_hits", stats.CacheHits, "supplied", stats.Supplied, "none", stats.None)
}

func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Acquire, enrich and tag every track of a catalogue",
		ArgsUsage: "[catalogue] [output]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Log a refresh request for files that already exist; they are re-tagged either way",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (overrides config)",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Genre provider: musicbrainz, spotify or none",
			},
			&cli.BoolFlag{
				Name:  "no-lyrics",
				Usage: "Skip lyric lookups",
			},
			&cli.BoolFlag{
				Name:  "playlist",
				Usage: "Write a playlist of the tagged tracks",
			},
			&cli.BoolFlag{
				Name:  "prefetch",
				Usage: "Resolve genres for the whole catalogue before processing",
			},
		},
		Action: r.Run,
	}
}
