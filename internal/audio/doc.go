// Package audio provides audio file manipulation services including
// ID3 tag writing and playlist generation.
//
// # ID3 Tagging
//
// Use the Tagger to write ID3 tags to MP3 files:
//
//	tagger := audio.NewTagger(audio.DefaultTagConfig(), httpClient, logger)
//	res, err := tagger.Apply(ctx, path, rec, genres, lyrics)
//
// The tagger writes:
//   - Title, Artist, Album
//   - Track Number, Disc Number, Year
//   - Genre (always, empty when unresolved)
//   - Lyrics (when resolved)
//   - Cover Art (embedded in MP3, when the fetch succeeds)
//
// # Playlist Generation
//
// Generate playlists in various formats:
//
//	creator := audio.NewPlaylistCreator(audio.FormatM3U, true) // extended M3U
//	content := creator.CreatePlaylist("songsync", entries)
//
// Supported formats:
//   - M3U (with optional extended info)
//   - PLS
//   - WPL (Windows Media Player)
//   - ZPL (Zune Media Player)
package audio
