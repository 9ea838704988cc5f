package model

import (
	"regexp"
	"strings"
)

// TrackRecord represents a single row of the input catalogue.
//
// TrackRecord carries everything the pipeline knows about a track before any
// external lookup happens:
//   - Title and Artist, which form the dedup key and the default search query
//   - Album, track/disc number and release date for ID3 tagging
//   - CoverURL for the embedded front cover
//   - Genre, an optional pre-supplied comma-separated genre list
//
// Records are produced by the catalogue reader and are never mutated
// afterwards; every component receives them by value.
//
// Example:
//
//	rec := TrackRecord{
//	    Title:       "Paranoid Android",
//	    Artist:      "Radiohead",
//	    Album:       "OK Computer",
//	    TrackNumber: "2",
//	    DiscNumber:  "1",
//	    ReleaseDate: "1997-05-21",
//	}
//	rec.Year() // "1997"
type TrackRecord struct {
	// Title is the track title.
	Title string

	// Artist is the display artist. Multiple artists are comma-joined,
	// e.g. "Daft Punk, Pharrell Williams".
	Artist string

	// Album is the album title.
	Album string

	// TrackNumber is the track number as it appears in the catalogue.
	TrackNumber string

	// DiscNumber is the disc number as it appears in the catalogue.
	DiscNumber string

	// ReleaseDate is an ISO-ish date ("1997", "1997-05" or "1997-05-21").
	ReleaseDate string

	// CoverURL is the URL of the album cover image. Empty if unknown.
	CoverURL string

	// Genre is an optional genre list supplied by the catalogue itself.
	Genre string
}

var leadingDigits = regexp.MustCompile(`^\s*(\d+)`)

// Complete reports whether the record carries both a title and an artist.
func (r TrackRecord) Complete() bool {
	return strings.TrimSpace(r.Title) != "" && strings.TrimSpace(r.Artist) != ""
}

// Year returns the leading numeric component of the release date,
// or an empty string when the release date has none.
func (r TrackRecord) Year() string {
	m := leadingDigits.FindStringSubmatch(r.ReleaseDate)
	if m == nil {
		return ""
	}
	return m[1]
}

// Artists splits the display artist into individual names.
func (r TrackRecord) Artists() []string {
	return SplitList(r.Artist)
}

// PrimaryArtist returns the first credited artist.
func (r TrackRecord) PrimaryArtist() string {
	artists := r.Artists()
	if len(artists) == 0 {
		return ""
	}
	return artists[0]
}

// SuppliedGenres returns the catalogue's own genre list.
func (r TrackRecord) SuppliedGenres() []string {
	return SplitList(r.Genre)
}

// String formats the record as "title - artist" for log lines.
func (r TrackRecord) String() string {
	return r.Title + " - " + r.Artist
}

// SplitList splits a comma-separated list, trimming entries and dropping
// empty ones. Order is preserved. Returns nil when nothing remains.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
