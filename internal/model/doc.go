// Package model defines the core data structures shared by the songsync
// pipeline.
//
// # TrackRecord
//
// TrackRecord is one catalogue row. It is read-only input:
//
//	rec := model.TrackRecord{Title: "Song", Artist: "Artist", ReleaseDate: "2004-03-01"}
//	rec.Year()          // "2004"
//	rec.PrimaryArtist() // "Artist"
//
// # Output paths
//
// Every record maps to exactly one output file, computed from its sanitized
// title and artist:
//
//	model.OutputPath("/music", rec, "mp3") // "/music/Song - Artist.mp3"
//
// The path doubles as the dedup key: a file that already exists there is
// treated as acquired.
//
// # TagSet
//
// TagSet holds the final field values written to an audio file by the tagger.
package model
