package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/handiism/songsync/internal/config"
)

// InitConfig writes the commented example configuration.
func (r *Runner) InitConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if cmd.Args().Len() > 0 {
		path = cmd.Args().First()
	}

	if err := config.CreateExample(path); err != nil {
		return err
	}

	r.writePlainln("✓ Wrote example configuration to %s", path)
	return nil
}

// ShowConfig validates the effective settings and prints them as TOML.
func (r *Runner) ShowConfig(ctx context.Context, cmd *cli.Command) error {
	settings, err := r.settings(cmd)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	return settings.Encode(r.output)
}

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "Write a commented example configuration",
				ArgsUsage: "[path]",
				Action:    r.InitConfig,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration",
				Action: r.ShowConfig,
			},
		},
	}
}
