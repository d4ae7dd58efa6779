// Package domain defines the core types and interfaces for the lesson
// playback engine. All other packages depend on domain; domain depends
// on nothing.
package domain

import (
	"fmt"
	"time"
)

// ActionKind enumerates the discrete whiteboard commands a lesson
// script can carry.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionWrite
	ActionDraw
	ActionHighlight
	ActionErase
	ActionNewPage
)

// String returns the command verb as it appears in the script grammar.
func (k ActionKind) String() string {
	switch k {
	case ActionWrite:
		return "write"
	case ActionDraw:
		return "draw"
	case ActionHighlight:
		return "highlight"
	case ActionErase:
		return "erase"
	case ActionNewPage:
		return "newpage"
	default:
		return "unknown"
	}
}

// Action is a discrete, timestamped whiteboard command extracted from a
// lesson script. Fired is set exactly once, by the scheduler, when the
// action is claimed for execution.
type Action struct {
	Kind    ActionKind
	Payload string
	DueAt   time.Duration // offset from playback start
	Fired   bool
}

// Command renders the action back to its canonical script form, e.g.
// `{write: "Integration by Substitution"}` or `{draw:circle}`. An
// unknown kind renders to the empty string, which executors no-op on.
func (a Action) Command() string {
	switch a.Kind {
	case ActionDraw:
		return fmt.Sprintf("{draw:%s}", a.Payload)
	case ActionWrite, ActionHighlight, ActionErase, ActionNewPage:
		return fmt.Sprintf("{%s: %q}", a.Kind, a.Payload)
	default:
		return ""
	}
}

// SpeechSegment is a caption of narration text anchored to a script
// timestamp. ImpliedDuration is the gap to the next timestamp in the
// script, not a measured audio length. Read-only after creation.
type SpeechSegment struct {
	Text            string
	StartAt         time.Duration
	ImpliedDuration time.Duration
}
