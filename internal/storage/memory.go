// Package storage provides session persistence implementations.
package storage

import (
	"context"
	"sync"

	"github.com/purelyricky/aitutor/internal/domain"
	"github.com/purelyricky/aitutor/internal/logger"
)

// Compile-time interface check.
var _ domain.SessionStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory session store. Safe for concurrent access.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	log      *logger.Logger
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		log:      log,
	}
}

// Save persists a session. Overwrites if it already exists.
func (s *MemoryStore) Save(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Debug("saving session %s (topic=%s, status=%s)", session.ID, session.Topic, session.Status)
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

// Load retrieves a session by ID.
func (s *MemoryStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		s.log.Debug("session not found: %s", id)
		return nil, domain.ErrNotFound
	}
	copied := *sess
	return &copied, nil
}

// Delete removes a session by ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sessions, id)
	s.log.Debug("deleted session %s", id)
	return nil
}

// ListActive returns all sessions currently playing.
func (s *MemoryStore) ListActive(ctx context.Context) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Session
	for _, sess := range s.sessions {
		if sess.Status == domain.SessionPlaying {
			copied := *sess
			out = append(out, &copied)
		}
	}
	s.log.Debug("listing active sessions, count=%d", len(out))
	return out, nil
}

// ListAll returns every stored session regardless of status.
func (s *MemoryStore) ListAll(ctx context.Context) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		copied := *sess
		out = append(out, &copied)
	}
	return out, nil
}
