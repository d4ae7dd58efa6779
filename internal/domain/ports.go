package domain

import "context"

// Executor receives rendered whiteboard commands and animates them on
// whatever surface the host provides. Implementations must call the
// session's NotifyActionComplete exactly once per Execute call, after
// the animation finishes, and never from inside Execute itself. An
// empty command is a no-op; the scheduler never dispatches one.
type Executor interface {
	Execute(command string)
}

// SignalSink receives the arbiter's edge signals. Implementations
// typically forward them as transport-level control messages.
type SignalSink interface {
	Interrupt()
	EndOfSpeech()
}

// ScriptSource provides lesson scripts. Implementations can be
// in-memory (built-in demos), file-based, or LLM-backed.
type ScriptSource interface {
	List(ctx context.Context) ([]LessonSummary, error)
	Get(ctx context.Context, id string) (*LessonScript, error)
}

// SessionStore persists playback sessions. Implementations can be
// in-memory or any other backend.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]*Session, error)
	ListAll(ctx context.Context) ([]*Session, error)
}

// AudioSink queues synthesized speech audio for playback. The engine
// only hands it raw PCM chunks; synthesis happens upstream.
type AudioSink interface {
	Enqueue(pcm []byte)
	Stop()
	QueueLen() int
}
