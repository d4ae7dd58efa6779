package storage

import (
	"context"
	"testing"
	"time"

	"github.com/purelyricky/aitutor/internal/domain"
	"github.com/purelyricky/aitutor/internal/logger"
)

func TestMemoryStoreCRUD(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	store := NewMemoryStore(log)
	ctx := context.Background()

	session := &domain.Session{
		ID:        "test-session-1",
		Topic:     "Pythagorean theorem",
		Status:    domain.SessionPlaying,
		Total:     4,
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	// Save.
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Load.
	loaded, err := store.Load(ctx, "test-session-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != session.ID {
		t.Fatalf("expected ID %s, got %s", session.ID, loaded.ID)
	}

	// Load returns a copy, not the stored record.
	loaded.Topic = "mutated"
	again, err := store.Load(ctx, "test-session-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Topic != "Pythagorean theorem" {
		t.Fatalf("store leaked internal state, topic=%s", again.Topic)
	}

	// Load nonexistent.
	_, err = store.Load(ctx, "nonexistent")
	if err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// ListActive.
	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active session, got %d", len(active))
	}

	// Delete.
	if err := store.Delete(ctx, "test-session-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = store.Load(ctx, "test-session-1")
	if err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Delete nonexistent.
	if err := store.Delete(ctx, "nonexistent"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListActiveFilters(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	store := NewMemoryStore(log)
	ctx := context.Background()

	sessions := []*domain.Session{
		{ID: "s1", Status: domain.SessionIdle},
		{ID: "s2", Status: domain.SessionPlaying},
		{ID: "s3", Status: domain.SessionCompleted},
		{ID: "s4", Status: domain.SessionStopped},
	}

	for _, s := range sessions {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("save %s: %v", s.ID, err)
		}
	}

	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "s2" {
		t.Fatalf("expected only the playing session, got %v", active)
	}

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 sessions, got %d", len(all))
	}
}

func TestJanitorSweep(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	store := NewMemoryStore(log)
	ctx := context.Background()

	now := time.Now()
	sessions := []*domain.Session{
		{ID: "fresh", Status: domain.SessionPlaying, UpdatedAt: now},
		{ID: "abandoned", Status: domain.SessionPlaying, UpdatedAt: now.Add(-time.Hour)},
		{ID: "done-recent", Status: domain.SessionCompleted, UpdatedAt: now.Add(-time.Minute)},
		{ID: "done-old", Status: domain.SessionCompleted, UpdatedAt: now.Add(-2 * time.Hour)},
		{ID: "stopped-old", Status: domain.SessionStopped, UpdatedAt: now.Add(-2 * time.Hour)},
	}
	for _, s := range sessions {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("save %s: %v", s.ID, err)
		}
	}

	j := NewJanitor(store, log,
		WithIdleTimeout(30*time.Minute),
		WithRetention(time.Hour),
	)
	j.Sweep(ctx)

	if s, err := store.Load(ctx, "fresh"); err != nil || s.Status != domain.SessionPlaying {
		t.Errorf("fresh session should stay playing, got %v/%v", s, err)
	}
	if s, err := store.Load(ctx, "abandoned"); err != nil || s.Status != domain.SessionStopped {
		t.Errorf("abandoned session should be marked stopped, got %v/%v", s, err)
	}
	if _, err := store.Load(ctx, "done-recent"); err != nil {
		t.Errorf("recently completed session should be retained: %v", err)
	}
	if _, err := store.Load(ctx, "done-old"); err != domain.ErrNotFound {
		t.Errorf("old completed session should be purged, got %v", err)
	}
	if _, err := store.Load(ctx, "stopped-old"); err != domain.ErrNotFound {
		t.Errorf("old stopped session should be purged, got %v", err)
	}
}
