// Package config provides configuration management for songsync.
//
// This package handles:
//   - Loading and saving settings from TOML files
//   - Default configuration values
//   - Writing a commented example config
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Downloads to ./downloads
//	// MusicBrainz genres, LRCLIB lyrics
//	// 20-60 s cooldown after each acquisition
//
// # Loading from File
//
//	settings, err := config.Load("songsync.toml")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//
// # Configuration Options
//
// Settings includes options for:
//   - Output directory and override file
//   - Cooldown range
//   - Genre provider and lookup spacing
//   - Lyrics, cover art and playlist generation
//   - yt-dlp invocation
//   - Spotify / Last.fm credentials
//   - Run ledger location
package config
