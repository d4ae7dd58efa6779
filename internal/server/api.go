package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/purelyricky/aitutor/internal/domain"
	"github.com/purelyricky/aitutor/internal/logger"
)

// API handles HTTP control endpoints.
type API struct {
	manager *Manager
	lessons domain.ScriptSource
	log     *logger.Logger
}

// NewAPI creates a new API handler.
func NewAPI(manager *Manager, lessons domain.ScriptSource, log *logger.Logger) *API {
	return &API{
		manager: manager,
		lessons: lessons,
		log:     log,
	}
}

// CreateRequest is the request body for the create endpoint.
type CreateRequest struct {
	Topic string `json:"topic" binding:"required"`
}

// SessionResponse is the generic session state response.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	Topic     string `json:"topic,omitempty"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// LoadRequest is the request body for the load endpoint. Exactly one of
// LessonID or Script must be set.
type LoadRequest struct {
	LessonID string `json:"lesson_id"`
	Script   string `json:"script"`
}

// StatusResponse is the response for the status endpoint.
type StatusResponse struct {
	SessionID    string `json:"session_id"`
	Topic        string `json:"topic"`
	Status       string `json:"status"`
	ElapsedMs    int64  `json:"elapsed_ms"`
	Total        int    `json:"total_actions"`
	Completed    int    `json:"completed_actions"`
	Remaining    int    `json:"remaining_actions"`
	Caption      string `json:"caption,omitempty"`
	UserSpeaking bool   `json:"user_speaking"`
}

// LessonEntry is one lesson in the catalogue listing.
type LessonEntry struct {
	ID          string `json:"id"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
}

// LessonsResponse is the response for the lessons endpoint.
type LessonsResponse struct {
	Count   int           `json:"count"`
	Lessons []LessonEntry `json:"lessons"`
	Error   string        `json:"error,omitempty"`
}

// Create starts a new lesson session.
func (a *API) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, SessionResponse{
			Status:  "error",
			Message: "topic is required",
		})
		return
	}

	sess := a.manager.Create(req.Topic)
	c.JSON(http.StatusOK, SessionResponse{
		SessionID: sess.ID,
		Topic:     sess.Topic,
		Status:    sess.Status.String(),
	})
}

// Load installs a lesson script into a session.
func (a *API) Load(c *gin.Context) {
	sessionID := c.Param("id")

	var req LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.LessonID == "" && req.Script == "") {
		c.JSON(http.StatusBadRequest, SessionResponse{
			SessionID: sessionID,
			Status:    "error",
			Message:   "lesson_id or script is required",
		})
		return
	}

	var err error
	if req.LessonID != "" {
		err = a.manager.LoadLesson(c.Request.Context(), sessionID, req.LessonID)
	} else {
		err = a.manager.LoadScript(sessionID, req.Script)
	}
	if err != nil {
		c.JSON(statusFor(err), SessionResponse{
			SessionID: sessionID,
			Status:    "error",
			Message:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		SessionID: sessionID,
		Status:    "loaded",
	})
}

// Play starts timeline playback for a session.
func (a *API) Play(c *gin.Context) {
	sessionID := c.Param("id")

	coord, err := a.manager.Get(sessionID)
	if err != nil {
		c.JSON(statusFor(err), SessionResponse{
			SessionID: sessionID,
			Status:    "error",
			Message:   err.Error(),
		})
		return
	}

	if coord.Progress().Total == 0 {
		c.JSON(http.StatusConflict, SessionResponse{
			SessionID: sessionID,
			Status:    "error",
			Message:   domain.ErrNoScript.Error(),
		})
		return
	}

	coord.Start()
	c.JSON(http.StatusOK, SessionResponse{
		SessionID: sessionID,
		Status:    "playing",
	})
}

// Stop halts playback for a session.
func (a *API) Stop(c *gin.Context) {
	sessionID := c.Param("id")

	coord, err := a.manager.Get(sessionID)
	if err != nil {
		c.JSON(statusFor(err), SessionResponse{
			SessionID: sessionID,
			Status:    "error",
			Message:   err.Error(),
		})
		return
	}

	coord.Stop()
	c.JSON(http.StatusOK, SessionResponse{
		SessionID: sessionID,
		Status:    "stopped",
	})
}

// Notify acknowledges the in-flight whiteboard action. Clients that use
// the websocket can send action_done there instead.
func (a *API) Notify(c *gin.Context) {
	sessionID := c.Param("id")

	coord, err := a.manager.Get(sessionID)
	if err != nil {
		c.JSON(statusFor(err), SessionResponse{
			SessionID: sessionID,
			Status:    "error",
			Message:   err.Error(),
		})
		return
	}

	coord.NotifyActionComplete()
	c.JSON(http.StatusOK, SessionResponse{
		SessionID: sessionID,
		Status:    "acknowledged",
	})
}

// Status returns the current state of a session.
func (a *API) Status(c *gin.Context) {
	sessionID := c.Param("id")

	coord, err := a.manager.Get(sessionID)
	if err != nil {
		c.JSON(statusFor(err), SessionResponse{
			SessionID: sessionID,
			Status:    "not_found",
		})
		return
	}

	sess := coord.Session()
	prog := coord.Progress()
	caption, _ := coord.Caption()

	c.JSON(http.StatusOK, StatusResponse{
		SessionID:    sessionID,
		Topic:        sess.Topic,
		Status:       sess.Status.String(),
		ElapsedMs:    prog.Elapsed.Milliseconds(),
		Total:        prog.Total,
		Completed:    prog.Completed,
		Remaining:    prog.Remaining,
		Caption:      caption,
		UserSpeaking: coord.UserSpeaking(),
	})
}

// Lessons lists the built-in lesson catalogue.
func (a *API) Lessons(c *gin.Context) {
	lessons, err := a.lessons.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, LessonsResponse{Error: err.Error()})
		return
	}

	entries := make([]LessonEntry, len(lessons))
	for i, l := range lessons {
		entries[i] = LessonEntry{ID: l.ID, Topic: l.Topic, Description: l.Description}
	}
	c.JSON(http.StatusOK, LessonsResponse{
		Count:   len(entries),
		Lessons: entries,
	})
}

// Delete stops and removes a session.
func (a *API) Delete(c *gin.Context) {
	sessionID := c.Param("id")
	a.manager.Remove(sessionID)
	c.JSON(http.StatusOK, SessionResponse{
		SessionID: sessionID,
		Status:    "removed",
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch err {
	case domain.ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
