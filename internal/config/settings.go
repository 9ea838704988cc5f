package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConfig []byte

// Genre providers understood by the pipeline.
const (
	ProviderMusicBrainz = "musicbrainz"
	ProviderSpotify     = "spotify"
	ProviderNone        = "none"
)

// ErrInvalidSettings is returned by Validate.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings holds all configuration options.
type Settings struct {
	// Output settings
	OutputDir     string `toml:"output_dir"`
	OverridesPath string `toml:"overrides_path"`
	UserAgent     string `toml:"user_agent"`

	Throttle ThrottleSettings `toml:"throttle"`
	Genre    GenreSettings    `toml:"genre"`
	Lyrics   LyricsSettings   `toml:"lyrics"`
	Cover    CoverSettings    `toml:"cover"`
	Acquire  AcquireSettings  `toml:"acquire"`
	Playlist PlaylistSettings `toml:"playlist"`
	Spotify  SpotifySettings  `toml:"spotify"`
	LastFM   LastFMSettings   `toml:"lastfm"`
	Ledger   LedgerSettings   `toml:"ledger"`
}

// ThrottleSettings bounds the randomized cooldown after each acquisition.
type ThrottleSettings struct {
	CooldownMin float64 `toml:"cooldown_min"` // seconds
	CooldownMax float64 `toml:"cooldown_max"` // seconds
}

// GenreSettings configures the genre fallback chain.
type GenreSettings struct {
	Provider       string  `toml:"provider"` // musicbrainz, spotify, none
	LookupInterval float64 `toml:"lookup_interval"`
	MinScore       int     `toml:"min_score"`
	Prefetch       bool    `toml:"prefetch"`
	PrefetchLimit  int     `toml:"prefetch_limit"`
	Separator      string  `toml:"separator"`
	BaseURL        string  `toml:"base_url"`
}

// LyricsSettings configures the LRCLIB lookup.
type LyricsSettings struct {
	Enabled  bool    `toml:"enabled"`
	Interval float64 `toml:"interval"`
	BaseURL  string  `toml:"base_url"`
	Language string  `toml:"language"`
}

// CoverSettings controls how the embedded cover is prepared.
type CoverSettings struct {
	Enabled      bool `toml:"enabled"`
	Resize       bool `toml:"resize"`
	MaxSize      int  `toml:"max_size"`
	ConvertToJPG bool `toml:"convert_to_jpg"`
}

// AcquireSettings configures the yt-dlp acquisition backend.
type AcquireSettings struct {
	Binary       string   `toml:"binary"`
	SearchPrefix string   `toml:"search_prefix"`
	AudioFormat  string   `toml:"audio_format"`
	AudioQuality string   `toml:"audio_quality"`
	ExtraArgs    []string `toml:"extra_args"`

	// Each acquisition is attempted up to MaxRetries times, waiting
	// RetryCooldown * RetryExponent^try seconds between attempts.
	MaxRetries    int     `toml:"max_retries"`
	RetryCooldown float64 `toml:"retry_cooldown"`
	RetryExponent float64 `toml:"retry_exponent"`
}

// PlaylistSettings controls the playlist written after a run.
type PlaylistSettings struct {
	Create   bool   `toml:"create"`
	Format   string `toml:"format"` // m3u, pls, wpl, zpl
	Name     string `toml:"name"`
	Extended bool   `toml:"m3u_extended"`
}

// SpotifySettings holds Spotify API credentials.
type SpotifySettings struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	TokenPath    string `toml:"token_path"`
}

// LastFMSettings holds the Last.fm API key used as a tag fallback.
type LastFMSettings struct {
	APIKey string `toml:"api_key"`
}

// LedgerSettings controls the SQLite run history.
type LedgerSettings struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = "."
	}
	return &Settings{
		OutputDir:     "downloads",
		OverridesPath: "overrides.toml",
		UserAgent:     "songsync/1.0 (https://github.com/handiism/songsync)",

		Throttle: ThrottleSettings{
			CooldownMin: 20,
			CooldownMax: 60,
		},

		Genre: GenreSettings{
			Provider:       ProviderMusicBrainz,
			LookupInterval: 1.1,
			MinScore:       90,
			Prefetch:       false,
			PrefetchLimit:  4,
			Separator:      "; ",
			BaseURL:        "https://musicbrainz.org/ws/2",
		},

		Lyrics: LyricsSettings{
			Enabled:  true,
			Interval: 0,
			BaseURL:  "https://lrclib.net",
			Language: "eng",
		},

		Cover: CoverSettings{
			Enabled:      true,
			Resize:       true,
			MaxSize:      1000,
			ConvertToJPG: true,
		},

		Acquire: AcquireSettings{
			Binary:        "yt-dlp",
			SearchPrefix:  "ytsearch1:",
			AudioFormat:   "mp3",
			AudioQuality:  "192K",
			MaxRetries:    2,
			RetryCooldown: 5,
			RetryExponent: 2,
		},

		Playlist: PlaylistSettings{
			Create:   false,
			Format:   "m3u",
			Name:     "songsync",
			Extended: true,
		},

		Spotify: SpotifySettings{
			RedirectURI: "http://127.0.0.1:8888/callback",
			TokenPath:   filepath.Join(configDir, "songsync", "spotify_token.json"),
		},

		Ledger: LedgerSettings{
			Enabled: true,
			Path:    "songsync.db",
		},
	}
}

// Load reads settings from a TOML file. Keys absent from the file keep
// their default values; a missing file yields the defaults.
func Load(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return settings, nil
}

// Save writes settings to a TOML file.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return s.Encode(f)
}

// Encode writes settings as TOML.
func (s *Settings) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(s)
}

// CreateExample writes the embedded, commented example config to path.
// It refuses to overwrite an existing file.
func CreateExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, exampleConfig, 0644)
}

// Validate checks value ranges that the pipeline relies on.
func (s *Settings) Validate() error {
	if s.Throttle.CooldownMin < 0 || s.Throttle.CooldownMax < s.Throttle.CooldownMin {
		return fmt.Errorf("%w: cooldown range [%g, %g]", ErrInvalidSettings, s.Throttle.CooldownMin, s.Throttle.CooldownMax)
	}
	switch s.Genre.Provider {
	case ProviderMusicBrainz, ProviderSpotify, ProviderNone:
	default:
		return fmt.Errorf("%w: unknown genre provider %q", ErrInvalidSettings, s.Genre.Provider)
	}
	if s.Genre.LookupInterval < 0 || s.Lyrics.Interval < 0 {
		return fmt.Errorf("%w: negative lookup interval", ErrInvalidSettings)
	}
	switch s.Playlist.Format {
	case "m3u", "pls", "wpl", "zpl":
	default:
		return fmt.Errorf("%w: unknown playlist format %q", ErrInvalidSettings, s.Playlist.Format)
	}
	return nil
}

// CooldownRange returns the cooldown bounds as durations.
func (s *Settings) CooldownRange() (time.Duration, time.Duration) {
	return seconds(s.Throttle.CooldownMin), seconds(s.Throttle.CooldownMax)
}

// GenreInterval is the minimum spacing between genre lookups.
func (s *Settings) GenreInterval() time.Duration {
	return seconds(s.Genre.LookupInterval)
}

// LyricsInterval is the minimum spacing between lyric lookups.
func (s *Settings) LyricsInterval() time.Duration {
	return seconds(s.Lyrics.Interval)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
