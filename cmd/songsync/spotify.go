package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/handiism/songsync/internal/catalogue"
	"github.com/handiism/songsync/internal/spotify"
)

// Export writes the user's Spotify liked songs to a catalogue file.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	settings, err := r.settings(cmd)
	if err != nil {
		return err
	}

	auth, err := spotify.NewAuthenticator(settings.Spotify, r.logger)
	if err != nil {
		return err
	}
	auth.OpenURL = func(authURL string) {
		r.writePlainln("Open this URL in your browser to authorize songsync:")
		r.writePlainln("  %s", infoStyle.Render(authURL))
	}

	if cmd.Bool("reauth") {
		if err := auth.Logout(); err != nil {
			return fmt.Errorf("failed to remove cached token: %w", err)
		}
	}

	api, err := auth.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	records, err := spotify.NewExporter(api, r.logger).LikedTracks(ctx)
	if err != nil {
		return err
	}

	out := cmd.String("out")
	if err := catalogue.Write(out, records); err != nil {
		return fmt.Errorf("failed to write catalogue: %w", err)
	}

	r.writePlainln("%s", successStyle.Render(fmt.Sprintf("✓ Exported %d liked songs to %s", len(records), out)))
	return nil
}

// Logout removes the cached Spotify token.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	settings, err := r.settings(cmd)
	if err != nil {
		return err
	}

	auth, err := spotify.NewAuthenticator(settings.Spotify, r.logger)
	if err != nil {
		return err
	}
	if err := auth.Logout(); err != nil {
		return err
	}

	r.writePlainln("✓ Removed cached token %s", settings.Spotify.TokenPath)
	return nil
}

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export Spotify liked songs to a catalogue file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Catalogue file to write",
				Value:   defaultCatalogue,
			},
			&cli.BoolFlag{
				Name:  "reauth",
				Usage: "Discard the cached token and authorize again",
			},
		},
		Action: r.Export,
		Commands: []*cli.Command{
			{
				Name:   "logout",
				Usage:  "Remove the cached Spotify token",
				Action: r.Logout,
			},
		},
	}
}
