package domain

import "time"

// Session represents one lesson playback session.
type Session struct {
	ID        string
	Topic     string
	Status    SessionStatus
	Total     int // actions in the loaded timeline
	Completed int // actions the executor has finished
	StartedAt time.Time
	UpdatedAt time.Time
}

// SessionStatus tracks the lifecycle of a playback session.
type SessionStatus int

const (
	SessionIdle SessionStatus = iota // created, nothing loaded or loaded but not started
	SessionPlaying
	SessionCompleted
	SessionStopped
)

// String returns a human-readable session status.
func (s SessionStatus) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionPlaying:
		return "playing"
	case SessionCompleted:
		return "completed"
	case SessionStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Progress is a point-in-time snapshot of a running timeline.
type Progress struct {
	Elapsed   time.Duration
	Total     int
	Completed int
	Remaining int
}

// LessonScript is a full machine-generated lesson: narration text with
// embedded timestamps and whiteboard commands.
type LessonScript struct {
	ID          string
	Topic       string
	Description string
	Script      string
}

// LessonSummary is a lightweight view of a lesson for listing.
type LessonSummary struct {
	ID          string
	Topic       string
	Description string
}
