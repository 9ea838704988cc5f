// Package logging builds the structured loggers shared by songsync's
// components.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New creates a [log.Logger] writing to w with timestamps enabled.
//
// The writer defaults to [os.Stderr]. When verbose is set the level is
// lowered to debug and the caller is reported.
func New(w io.Writer, verbose bool) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: verbose}
	l := log.NewWithOptions(w, opts)
	if verbose {
		l.SetLevel(log.DebugLevel)
	}
	return l
}

// Discard returns a logger that drops everything. Components fall back to it
// when constructed without a logger.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// With creates a child logger with the given key-value pairs on every entry.
func With(l *log.Logger, kv ...any) *log.Logger {
	return OrDiscard(l).With(kv...)
}
