// Package pipeline drives a catalogue through acquisition, enrichment and
// tagging, one track at a time.
//
// # State machine
//
// Every track moves Pending -> Resolving -> Enriching -> Tagging -> Done,
// or ends in Skipped or Failed:
//   - an incomplete record, or any other resolution error, is Skipped
//   - a failed acquisition is Failed
//   - a failed tag write is Failed
//   - genre and lyric lookups never fail a track; they degrade to no value
//
// # Throttling
//
// A track whose audio was acquired during the run owes a cooldown drawn
// uniformly from [CooldownMin, CooldownMax]. The driver pauses for it
// before the next track. Pre-existing files and failed acquisitions owe
// nothing.
//
// # Progress
//
// Progress is reported through ProgressEvent callbacks, one per track and a
// final summary, so the CLI and the TUI can render the same run.
package pipeline
