package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/handiism/songsync/internal/app"
	"github.com/handiism/songsync/internal/config"
	"github.com/handiism/songsync/internal/logging"
)

const (
	version       = "0.3.0"
	defaultConfig = "songsync.toml"
)

// errInterrupted is returned by actions that stopped on a signal.
var errInterrupted = errors.New("interrupted")

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1DB954"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1A3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A8DADC"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C757D"))
)

// Runner holds all dependencies for CLI commands and provides methods for
// each command action.
type Runner struct {
	logger *log.Logger
	output io.Writer
	newApp func(ctx context.Context, opts app.Options) (*app.App, error)
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger *log.Logger
	Output io.Writer

	// NewApp builds the pipeline for run. Defaults to app.New.
	NewApp func(ctx context.Context, opts app.Options) (*app.App, error)
}

// NewRunner creates a new Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = logging.New(nil, false)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.NewApp == nil {
		opts.NewApp = app.New
	}

	return &Runner{
		logger: opts.Logger,
		output: opts.Output,
		newApp: opts.NewApp,
	}
}

func (r *Runner) command() *cli.Command {
	return &cli.Command{
		Name:    "songsync",
		Usage:   "Acquire and tag the tracks of a liked-songs catalogue",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfig,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Show verbose output and debug logs",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				r.logger.SetLevel(log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		runCommand, exportCommand, historyCommand, inspectCommand, configCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// settings loads the file named by --config. A missing file yields the
// defaults.
func (r *Runner) settings(cmd *cli.Command) (*config.Settings, error) {
	path := cmd.String("config")
	s, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("settings loaded", "path", path)
	return s, nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain(format+"\n", args...)
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlainln("%s", headerStyle.Render(title))
	r.writePlainln("%s", dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
}
