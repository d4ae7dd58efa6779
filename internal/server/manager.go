// Package server exposes the engine over HTTP and websockets: session
// control endpoints, a per-session event stream, and Prometheus metrics.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/purelyricky/aitutor/internal/audio"
	"github.com/purelyricky/aitutor/internal/domain"
	"github.com/purelyricky/aitutor/internal/logger"
	"github.com/purelyricky/aitutor/internal/metrics"
	"github.com/purelyricky/aitutor/internal/playback"
)

// Message is the websocket envelope for both directions.
type Message struct {
	Type    string         `json:"type"`
	TsMs    int64          `json:"ts_ms"`
	Payload map[string]any `json:"payload,omitempty"`
}

func newMessage(typ string, payload map[string]any) Message {
	return Message{Type: typ, TsMs: time.Now().UnixMilli(), Payload: payload}
}

// wsExecutor pushes rendered whiteboard commands to the session's
// client over the websocket. The client animates them and acks with an
// action_done message.
type wsExecutor struct {
	reg       *Registry
	sessionID string
	log       *logger.Logger
}

func (e *wsExecutor) Execute(command string) {
	if command == "" {
		return
	}
	msg := newMessage("action", map[string]any{"command": command})
	if err := e.reg.SendJSON(context.Background(), e.sessionID, msg); err != nil {
		e.log.Error("session %s: pushing action: %v", e.sessionID, err)
	}
}

// Manager owns the live coordinators, one per session.
type Manager struct {
	log       *logger.Logger
	store     domain.SessionStore
	lessons   domain.ScriptSource
	reg       *Registry
	coordOpts []playback.Option

	mu       sync.Mutex
	sessions map[string]*playback.Coordinator
}

// NewManager creates a session manager. coordOpts are applied to every
// coordinator it builds.
func NewManager(store domain.SessionStore, lessons domain.ScriptSource, reg *Registry, log *logger.Logger, coordOpts ...playback.Option) *Manager {
	return &Manager{
		log:       log,
		store:     store,
		lessons:   lessons,
		reg:       reg,
		coordOpts: coordOpts,
		sessions:  make(map[string]*playback.Coordinator),
	}
}

// Create builds a new session and its coordinator. Whiteboard commands
// and arbiter signals flow out over the session's websocket; lesson
// audio plays client-side, so the engine keeps a silent sink.
func (m *Manager) Create(topic string) *domain.Session {
	id := uuid.NewString()
	sess := &domain.Session{
		ID:        id,
		Topic:     topic,
		Status:    domain.SessionIdle,
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	exec := &wsExecutor{reg: m.reg, sessionID: id, log: m.log}
	sink := audio.NewNoOpSink(m.log)

	c := playback.New(sess, exec, sink, m.store, m.log, m.coordOpts...)
	c.OnComplete = func() { m.push(id, "lesson_complete", nil) }
	c.OnInterrupt = func() { m.push(id, "interrupt", nil) }
	c.OnEndOfSpeech = func() { m.push(id, "end_of_speech", nil) }

	m.mu.Lock()
	m.sessions[id] = c
	m.mu.Unlock()
	metrics.SessionsActive.Inc()

	m.log.Info("session %s created (topic=%q)", id, topic)
	return sess
}

// Get returns the coordinator for a session ID.
func (m *Manager) Get(sessionID string) (*playback.Coordinator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

// LoadLesson installs a built-in lesson's script into a session.
func (m *Manager) LoadLesson(ctx context.Context, sessionID, lessonID string) error {
	c, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	l, err := m.lessons.Get(ctx, lessonID)
	if err != nil {
		return err
	}
	c.LoadResponse(l.Script)
	return nil
}

// LoadScript installs raw script text into a session, typically a
// machine-generated response streamed in by the caller.
func (m *Manager) LoadScript(sessionID, text string) error {
	c, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	c.LoadResponse(text)
	return nil
}

// Remove stops a session's coordinator and forgets it.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	c, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		c.Stop()
		metrics.SessionsActive.Dec()
		m.log.Info("session %s removed", sessionID)
	}
}

// StopAll stops every live coordinator. Used on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	coords := make([]*playback.Coordinator, 0, len(m.sessions))
	for _, c := range m.sessions {
		coords = append(coords, c)
	}
	m.mu.Unlock()

	for _, c := range coords {
		c.Stop()
	}
}

func (m *Manager) push(sessionID, typ string, payload map[string]any) {
	if err := m.reg.SendJSON(context.Background(), sessionID, newMessage(typ, payload)); err != nil {
		m.log.Error("session %s: pushing %s: %v", sessionID, typ, err)
	}
}
