package storage

import (
	"context"
	"time"

	"github.com/purelyricky/aitutor/internal/domain"
	"github.com/purelyricky/aitutor/internal/logger"
)

// JanitorOption configures the janitor.
type JanitorOption func(*Janitor)

// WithSweepInterval sets how often the janitor inspects the store.
func WithSweepInterval(d time.Duration) JanitorOption {
	return func(j *Janitor) { j.interval = d }
}

// WithIdleTimeout sets how long a playing session may go without an
// update before it is considered abandoned.
func WithIdleTimeout(d time.Duration) JanitorOption {
	return func(j *Janitor) { j.idleTimeout = d }
}

// WithRetention sets how long finished sessions are kept around for
// status queries before being purged.
func WithRetention(d time.Duration) JanitorOption {
	return func(j *Janitor) { j.retention = d }
}

// Janitor periodically sweeps the session store: playing sessions that
// stopped receiving updates are marked stopped, and finished sessions
// past the retention window are purged. Runs on a slow cycle so the
// store never accumulates dead state in long-lived processes.
type Janitor struct {
	store       domain.SessionStore
	log         *logger.Logger
	interval    time.Duration
	idleTimeout time.Duration
	retention   time.Duration
}

// NewJanitor creates a janitor with the given dependencies.
func NewJanitor(store domain.SessionStore, log *logger.Logger, opts ...JanitorOption) *Janitor {
	j := &Janitor{
		store:       store,
		log:         log,
		interval:    1 * time.Minute,
		idleTimeout: 30 * time.Minute,
		retention:   1 * time.Hour,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run starts the sweep loop. Blocks until ctx is cancelled.
// Intended to be called as a goroutine.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.log.Info("janitor started (interval=%s, idle=%s, retention=%s)", j.interval, j.idleTimeout, j.retention)

	for {
		select {
		case <-ctx.Done():
			j.log.Info("janitor stopped")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one janitor cycle across every stored session.
func (j *Janitor) Sweep(ctx context.Context) {
	sessions, err := j.store.ListAll(ctx)
	if err != nil {
		j.log.Error("janitor: listing sessions: %v", err)
		return
	}

	now := time.Now()
	for _, session := range sessions {
		j.inspect(ctx, session, now)
	}
}

// inspect examines a single session and decides what to do with it.
func (j *Janitor) inspect(ctx context.Context, session *domain.Session, now time.Time) {
	idle := now.Sub(session.UpdatedAt)

	switch session.Status {
	case domain.SessionPlaying:
		if idle <= j.idleTimeout {
			j.log.Debug("janitor: session %s playing, %d/%d actions, idle %s",
				session.ID, session.Completed, session.Total, idle.Round(time.Second))
			return
		}
		session.Status = domain.SessionStopped
		session.UpdatedAt = now
		if err := j.store.Save(ctx, session); err != nil {
			j.log.Error("janitor: marking session %s stopped: %v", session.ID, err)
			return
		}
		j.log.Warn("janitor: session %s abandoned after %s, marked stopped", session.ID, idle.Round(time.Second))

	case domain.SessionCompleted, domain.SessionStopped:
		if idle <= j.retention {
			return
		}
		if err := j.store.Delete(ctx, session.ID); err != nil {
			j.log.Error("janitor: purging session %s: %v", session.ID, err)
			return
		}
		j.log.Debug("janitor: purged session %s (%s since last update)", session.ID, idle.Round(time.Second))
	}
}
