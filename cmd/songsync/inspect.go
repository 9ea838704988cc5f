package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/handiism/songsync/internal/audio"
)

// Inspect prints the tags songsync manages in an audio file.
func (r *Runner) Inspect(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("file path is required")
	}
	settings, err := r.settings(cmd)
	if err != nil {
		return err
	}

	for _, path := range cmd.Args().Slice() {
		set, err := audio.ReadTagSet(path, settings.Genre.Separator)
		if err != nil {
			return err
		}

		r.writePlainHeader(path)
		r.writePlainln("Title:   %s", set.Title)
		r.writePlainln("Artist:  %s", set.Artist)
		r.writePlainln("Album:   %s", set.Album)
		r.writePlainln("Track:   %s", set.TrackNumber)
		r.writePlainln("Disc:    %s", set.DiscNumber)
		r.writePlainln("Year:    %s", set.Year)
		r.writePlainln("Genres:  %s", strings.Join(set.Genres, ", "))
		if len(set.Cover) > 0 {
			r.writePlainln("Cover:   %s, %d bytes", set.CoverMIME, len(set.Cover))
		} else {
			r.writePlainln("Cover:   %s", dimStyle.Render("none"))
		}
		if set.Lyrics != "" {
			r.writePlainln("Lyrics:  %d lines", strings.Count(set.Lyrics, "\n")+1)
		} else {
			r.writePlainln("Lyrics:  %s", dimStyle.Render("none"))
		}
		r.writePlainln("")
	}
	return nil
}

func inspectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the tags of audio files",
		ArgsUsage: "<file>...",
		Action:    r.Inspect,
	}
}
