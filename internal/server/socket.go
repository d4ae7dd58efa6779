package server

import (
	"encoding/json"
	"net/http"

	ws "nhooyr.io/websocket"

	"github.com/purelyricky/aitutor/internal/logger"
)

// Socket handles the per-session websocket. Inbound messages carry the
// client's microphone energy samples, action acks, and script text;
// outbound messages carry whiteboard commands and arbiter signals.
type Socket struct {
	manager *Manager
	reg     *Registry
	log     *logger.Logger
}

// NewSocket creates the websocket handler.
func NewSocket(manager *Manager, reg *Registry, log *logger.Logger) *Socket {
	return &Socket{manager: manager, reg: reg, log: log}
}

// Handle upgrades the request and pumps messages until the client goes
// away. One connection per session; a new one replaces the old.
func (s *Socket) Handle(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}
	coord, err := s.manager.Get(sessionID)
	if err != nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	c, err := ws.Accept(w, r, nil)
	if err != nil {
		s.log.Error("ws accept: %v", err)
		return
	}
	if s.reg.Replace(sessionID, c) {
		s.log.Info("session %s: previous connection replaced", sessionID)
	}
	s.log.Info("session %s: client connected", sessionID)

	ctx := r.Context()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		if typ != ws.MessageText && typ != ws.MessageBinary {
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("session %s: invalid message: %v", sessionID, err)
			continue
		}

		switch msg.Type {
		case "energy":
			if v, ok := msg.Payload["value"].(float64); ok {
				coord.FeedEnergy(v)
			}

		case "action_done":
			coord.NotifyActionComplete()

		case "load":
			if text, ok := msg.Payload["script"].(string); ok && text != "" {
				coord.LoadResponse(text)
			}

		case "audio_started":
			// Client-side playback began; raise the guard without
			// queueing anything locally.
			coord.SetResponseInProgress(true)

		case "audio_done":
			coord.SetResponseInProgress(false)
			coord.AudioQueueEmpty()

		case "response_in_progress":
			if v, ok := msg.Payload["value"].(bool); ok {
				coord.SetResponseInProgress(v)
			}

		default:
			s.log.Debug("session %s: ignoring message type %q", sessionID, msg.Type)
		}
	}

	_ = c.Close(ws.StatusNormalClosure, "done")
	s.reg.Remove(sessionID)
	s.log.Info("session %s: client disconnected", sessionID)
}
