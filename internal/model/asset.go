package model

import (
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultExtension is the audio container produced by the acquisition backend.
const DefaultExtension = "mp3"

// ResolvedAsset is the local audio file backing a TrackRecord.
type ResolvedAsset struct {
	// Path is the deterministic output path computed by OutputPath.
	Path string

	// ExistedBefore is true when the file was already on disk before this run
	// looked at it.
	ExistedBefore bool

	// AcquiredThisRun is true when the acquisition backend produced the file
	// during this run. Only acquired assets owe a cooldown.
	AcquiredThisRun bool
}

var (
	invalidFileChars = regexp.MustCompile(`[\\/*?:"<>|\x00-\x1f]`)
	repeatedSpace    = regexp.MustCompile(`\s+`)
	trailingDots     = regexp.MustCompile(`[.\s]+$`)
)

// FileName returns the output file name for a (title, artist) pair:
// "<title> - <artist>.<ext>" with both parts sanitized.
//
// The result is a pure function of its inputs. Two records with the same
// title and artist always map to the same name, which makes the name the
// dedup key for already-acquired tracks.
func FileName(title, artist, ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	return BaseName(title, artist) + "." + strings.TrimPrefix(ext, ".")
}

// BaseName is FileName without the extension.
func BaseName(title, artist string) string {
	return sanitizeFileName(title) + " - " + sanitizeFileName(artist)
}

// OutputPath joins the output directory and the record's file name.
func OutputPath(dir string, rec TrackRecord, ext string) string {
	return filepath.Join(dir, FileName(rec.Title, rec.Artist, ext))
}

// sanitizeFileName strips characters that are invalid in file names.
//
// The following transformations are applied:
//   - Invalid characters (\/*?:"<>| and control chars) are removed
//   - Runs of whitespace are collapsed to a single space
//   - Leading whitespace, trailing whitespace and trailing dots are removed
//
// Example:
//
//	sanitizeFileName("AC/DC")          // Returns "ACDC"
//	sanitizeFileName("What? Really...") // Returns "What Really"
func sanitizeFileName(name string) string {
	name = repeatedSpace.ReplaceAllString(name, " ")
	name = invalidFileChars.ReplaceAllString(name, "")
	name = repeatedSpace.ReplaceAllString(name, " ")
	name = trailingDots.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}
