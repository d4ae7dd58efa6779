package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/purelyricky/aitutor/internal/lesson"
	"github.com/purelyricky/aitutor/internal/logger"
	"github.com/purelyricky/aitutor/internal/playback"
	"github.com/purelyricky/aitutor/internal/schedule"
	"github.com/purelyricky/aitutor/internal/storage"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	store := storage.NewMemoryStore(log)
	lessons := lesson.NewMemorySource(log)
	reg := NewRegistry()

	manager := NewManager(store, lessons, reg, log,
		playback.WithSchedulerOptions(
			schedule.WithIdleTick(5*time.Millisecond),
			schedule.WithBusyTick(5*time.Millisecond),
			schedule.WithMinSpacing(0),
		),
	)
	t.Cleanup(manager.StopAll)

	api := NewAPI(manager, lessons, log)
	socket := NewSocket(manager, reg, log)
	return SetupRouter(api, socket)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionLifecycle(t *testing.T) {
	r := newTestRouter(t)

	// Create.
	w := doJSON(t, r, http.MethodPost, "/session", map[string]string{"topic": "Photosynthesis"})
	if w.Code != http.StatusOK {
		t.Fatalf("create: status %d, body %s", w.Code, w.Body.String())
	}
	var created SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.SessionID == "" || created.Status != "idle" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	base := "/session/" + created.SessionID

	// Load a built-in lesson.
	w = doJSON(t, r, http.MethodPost, base+"/load", map[string]string{"lesson_id": "photosynthesis"})
	if w.Code != http.StatusOK {
		t.Fatalf("load: status %d, body %s", w.Code, w.Body.String())
	}

	// Play.
	w = doJSON(t, r, http.MethodPost, base+"/play", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("play: status %d", w.Code)
	}

	// Status while playing.
	w = doJSON(t, r, http.MethodGet, base+"/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: status %d", w.Code)
	}
	var st StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Status != "playing" {
		t.Errorf("session status = %s, want playing", st.Status)
	}
	if st.Total == 0 {
		t.Error("loaded lesson should have a nonzero action count")
	}

	// Stop.
	w = doJSON(t, r, http.MethodPost, base+"/stop", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stop: status %d", w.Code)
	}

	// Delete.
	w = doJSON(t, r, http.MethodDelete, base, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status %d", w.Code)
	}

	// Status after delete.
	w = doJSON(t, r, http.MethodGet, base+"/status", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status after delete: status %d, want 404", w.Code)
	}
}

func TestLoadRawScript(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/session", map[string]string{"topic": "Custom"})
	var created SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	base := "/session/" + created.SessionID

	script := "[00:00] Hello {write: \"Hi\"}\n[00:05] {draw:circle}"
	w = doJSON(t, r, http.MethodPost, base+"/load", map[string]string{"script": script})
	if w.Code != http.StatusOK {
		t.Fatalf("load raw script: status %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, base+"/status", nil)
	var st StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Total != 2 {
		t.Errorf("total actions = %d, want 2", st.Total)
	}
}

func TestBadRequests(t *testing.T) {
	r := newTestRouter(t)

	// Create without a topic.
	w := doJSON(t, r, http.MethodPost, "/session", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("create without topic: status %d, want 400", w.Code)
	}

	// Operations on an unknown session.
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/session/nope/play"},
		{http.MethodPost, "/session/nope/stop"},
		{http.MethodPost, "/session/nope/notify"},
		{http.MethodGet, "/session/nope/status"},
	} {
		w := doJSON(t, r, tc.method, tc.path, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s: status %d, want 404", tc.method, tc.path, w.Code)
		}
	}

	// Load with an empty body.
	w = doJSON(t, r, http.MethodPost, "/session", map[string]string{"topic": "x"})
	var created SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	w = doJSON(t, r, http.MethodPost, "/session/"+created.SessionID+"/load", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty load: status %d, want 400", w.Code)
	}

	// Unknown lesson ID.
	w = doJSON(t, r, http.MethodPost, "/session/"+created.SessionID+"/load", map[string]string{"lesson_id": "nope"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown lesson: status %d, want 404", w.Code)
	}

	// Play before anything is loaded.
	w = doJSON(t, r, http.MethodPost, "/session/"+created.SessionID+"/play", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("play without script: status %d, want 409", w.Code)
	}
}

func TestLessonsCatalogue(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/lessons", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("lessons: status %d", w.Code)
	}
	var resp LessonsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode lessons: %v", err)
	}
	if resp.Count < 2 {
		t.Errorf("expected at least 2 built-in lessons, got %d", resp.Count)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health: status %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Errorf("metrics: status %d", w.Code)
	}
}
