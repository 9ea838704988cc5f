package pipeline

import (
	"errors"
	"fmt"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// String returns the level name.
func (l ProgressLevel) String() string {
	switch l {
	case LevelVerbose:
		return "verbose"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelSuccess:
		return "success"
	default:
		return "info"
	}
}

// ProgressEvent represents a pipeline progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel

	// Position is the 1-based catalogue position the event is about, or zero
	// for run-level events.
	Position int
	Total    int
}

// State is the position of a track in the pipeline.
type State int

const (
	StatePending State = iota
	StateResolving
	StateEnriching
	StateTagging
	StateDone
	StateSkipped
	StateFailed
)

var stateNames = [...]string{
	StatePending:   "pending",
	StateResolving: "resolving",
	StateEnriching: "enriching",
	StateTagging:   "tagging",
	StateDone:      "done",
	StateSkipped:   "skipped",
	StateFailed:    "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether s is Done, Skipped or Failed.
func (s State) Terminal() bool {
	return s == StateDone || s == StateSkipped || s == StateFailed
}

// SetupError is an unrecoverable failure before any track is processed,
// such as a missing catalogue or an unwritable output directory. It is the
// only error a run returns.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed: %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// IsSetupError reports whether err is or wraps a *SetupError.
func IsSetupError(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}
