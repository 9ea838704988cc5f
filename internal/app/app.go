// Package app wires songsync's components together from Settings. The CLI
// and the TUI both build their runs through it.
package app

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/handiism/songsync/internal/asset"
	"github.com/handiism/songsync/internal/audio"
	"github.com/handiism/songsync/internal/catalogue"
	"github.com/handiism/songsync/internal/config"
	"github.com/handiism/songsync/internal/genre"
	"github.com/handiism/songsync/internal/http"
	ioutils "github.com/handiism/songsync/internal/io"
	"github.com/handiism/songsync/internal/lastfm"
	"github.com/handiism/songsync/internal/ledger"
	"github.com/handiism/songsync/internal/logging"
	"github.com/handiism/songsync/internal/lyrics"
	"github.com/handiism/songsync/internal/musicbrainz"
	"github.com/handiism/songsync/internal/override"
	"github.com/handiism/songsync/internal/pipeline"
	"github.com/handiism/songsync/internal/spotify"
)

// Options configures New.
type Options struct {
	Settings *config.Settings
	Logger   *log.Logger

	// Acquirer replaces the yt-dlp backend, and Extension its output
	// extension.
	Acquirer  asset.Acquirer
	Extension string

	// Client replaces the HTTP client built from Settings.UserAgent.
	Client *http.Client
}

// App holds the components of one process. The genre cache it owns lives
// as long as the App.
type App struct {
	settings *config.Settings
	logger   *log.Logger

	client   *http.Client
	rl       *http.RateLimitedClient
	assets   *asset.Resolver
	genres   *genre.Resolver
	lyrics   *lyrics.Resolver
	tagger   *audio.Tagger
	ledger   *ledger.Store
	playlist *audio.PlaylistCreator
}

// New builds an App. Problems that make every run impossible (invalid
// settings, unreadable overrides, missing yt-dlp, unusable ledger) are
// returned as *pipeline.SetupError. An unusable genre provider only
// disables genre lookups.
func New(ctx context.Context, opts Options) (*App, error) {
	s := opts.Settings
	if s == nil {
		s = config.DefaultSettings()
	}
	logger := logging.OrDiscard(opts.Logger)

	if err := s.Validate(); err != nil {
		return nil, &pipeline.SetupError{Op: "validate config", Err: err}
	}

	client := opts.Client
	if client == nil {
		client = http.NewClient(s.UserAgent)
	}
	rl := http.NewRateLimitedClient(client, logger)

	overrides, err := override.Load(s.OverridesPath)
	if err != nil {
		return nil, &pipeline.SetupError{Op: "load overrides", Err: err}
	}
	if overrides.Len() > 0 {
		logger.Info("loaded overrides", "count", overrides.Len(), "path", s.OverridesPath)
	}

	acquirer, ext := opts.Acquirer, opts.Extension
	if acquirer == nil {
		y := asset.NewYTDLP(s.Acquire, client, logging.With(logger, "component", "yt-dlp"))
		if err := y.Check(); err != nil {
			return nil, &pipeline.SetupError{Op: "find acquisition backend", Err: err}
		}
		acquirer, ext = y, y.Extension()
	}

	a := &App{
		settings: s,
		logger:   logger,
		client:   client,
		rl:       rl,
		assets:   asset.NewResolver(acquirer, overrides, ext, logger),
	}

	source, err := a.genreSource(ctx)
	if err != nil {
		logger.Warn("genre lookups disabled", "provider", s.Genre.Provider, "err", err)
		source = nil
	}
	a.genres = genre.NewResolver(source, genre.NewCache(), logging.With(logger, "component", "genre"))

	if s.Lyrics.Enabled {
		a.lyrics = lyrics.NewResolver(rl, s.Lyrics.BaseURL, s.LyricsInterval(), logger)
	}

	tagCfg := audio.DefaultTagConfig()
	tagCfg.GenreSeparator = s.Genre.Separator
	tagCfg.LyricsLanguage = s.Lyrics.Language
	tagCfg.EmbedCover = s.Cover.Enabled
	tagCfg.Cover = ioutils.CoverOptions{
		Resize:        s.Cover.Resize,
		MaxSize:       s.Cover.MaxSize,
		ConvertToJPEG: s.Cover.ConvertToJPG,
	}
	a.tagger = audio.NewTagger(tagCfg, client, logger)

	if s.Playlist.Create {
		a.playlist = audio.NewPlaylistCreator(audio.ParsePlaylistFormat(s.Playlist.Format), s.Playlist.Extended)
	}

	if s.Ledger.Enabled {
		store, err := ledger.Open(s.Ledger.Path)
		if err != nil {
			return nil, &pipeline.SetupError{Op: "open ledger", Err: err}
		}
		a.ledger = store
	}

	return a, nil
}

func (a *App) genreSource(ctx context.Context) (genre.Source, error) {
	s := a.settings
	switch s.Genre.Provider {
	case config.ProviderMusicBrainz:
		return musicbrainz.New(a.rl, s.Genre.BaseURL, s.GenreInterval(), s.Genre.MinScore), nil

	case config.ProviderSpotify:
		api, err := spotify.NewAppClient(ctx, s.Spotify)
		if err != nil {
			return nil, err
		}
		var tags spotify.TagFetcher
		if s.LastFM.APIKey != "" {
			tags = lastfm.New(a.rl, s.LastFM.APIKey, "", s.GenreInterval())
		}
		return spotify.NewGenreSource(api, a.rl, s.GenreInterval(), tags, a.logger), nil

	case config.ProviderNone:
		return nil, nil
	}
	return nil, errors.New("unknown provider")
}

// RunOptions are the per-run inputs.
type RunOptions struct {
	Catalogue  string
	OutputDir  string
	Force      bool
	OnProgress func(pipeline.ProgressEvent)
	OnOutcome  func(pipeline.Outcome)
}

// Driver returns a pipeline driver over the App's components.
func (a *App) Driver(ro RunOptions) *pipeline.Driver {
	s := a.settings
	min, max := s.CooldownRange()

	outputDir := ro.OutputDir
	if outputDir == "" {
		outputDir = s.OutputDir
	}

	opts := pipeline.Options{
		Assets:        a.assets,
		Genres:        a.genres,
		Tagger:        a.tagger,
		CooldownMin:   min,
		CooldownMax:   max,
		Force:         ro.Force,
		OutputDir:     outputDir,
		Prefetch:      s.Genre.Prefetch,
		PrefetchLimit: s.Genre.PrefetchLimit,
		Catalogue:     ro.Catalogue,
		Playlist:      a.playlist,
		PlaylistName:  s.Playlist.Name,
		Logger:        a.logger,
		OnProgress:    ro.OnProgress,
		OnOutcome:     ro.OnOutcome,
	}
	// Typed nil pointers must not end up in the interfaces.
	if a.lyrics != nil {
		opts.Lyrics = a.lyrics
	}
	if a.ledger != nil {
		opts.Ledger = a.ledger
	}
	return pipeline.NewDriver(opts)
}

// Run opens the catalogue and processes it. A missing or unreadable
// catalogue is a *pipeline.SetupError.
func (a *App) Run(ctx context.Context, ro RunOptions) (pipeline.Summary, error) {
	reader, err := catalogue.Open(ro.Catalogue)
	if err != nil {
		return pipeline.Summary{}, &pipeline.SetupError{Op: "open catalogue", Err: err}
	}
	a.logger.Info("catalogue loaded", "path", ro.Catalogue, "tracks", reader.Len())
	return a.Driver(ro).Run(ctx, reader)
}

// Settings returns the settings the App was built from.
func (a *App) Settings() *config.Settings {
	return a.settings
}

// Ledger returns the run history store, or nil when it is disabled.
func (a *App) Ledger() *ledger.Store {
	return a.ledger
}

// GenreStats reports the genre resolver's counters.
func (a *App) GenreStats() genre.Stats {
	return a.genres.Stats()
}

// Close releases the ledger.
func (a *App) Close() error {
	if a.ledger != nil {
		return a.ledger.Close()
	}
	return nil
}
