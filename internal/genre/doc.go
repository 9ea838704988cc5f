// Package genre resolves a best-effort genre list for a track.
//
// Resolution is a fallback chain over a two-phase Source (identify an
// artist, then classify the identifier), a run-scoped Cache, and the genre
// string carried by the catalogue record. Sources live in their own
// packages (musicbrainz, spotify).
package genre
