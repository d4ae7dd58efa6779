// Package schedule implements the action timeline scheduler: it walks a
// parsed lesson timeline against wall-clock time and hands whiteboard
// commands to an executor, one at a time.
package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/purelyricky/aitutor/internal/domain"
	"github.com/purelyricky/aitutor/internal/logger"
	"github.com/purelyricky/aitutor/internal/metrics"
)

// Option configures the scheduler.
type Option func(*Scheduler)

// WithIdleTick sets the poll interval used when no action fired on the
// previous tick. Shorter keeps perceived latency low.
func WithIdleTick(d time.Duration) Option {
	return func(s *Scheduler) { s.idleTick = d }
}

// WithBusyTick sets the poll interval used right after an action fired,
// so the loop doesn't busy-spin while the executor animates.
func WithBusyTick(d time.Duration) Option {
	return func(s *Scheduler) { s.busyTick = d }
}

// WithMinSpacing sets the minimum elapsed gap between two consecutive
// action dispatches. Actions due sooner are buffered, not dropped.
func WithMinSpacing(d time.Duration) Option {
	return func(s *Scheduler) { s.minSpacing = d }
}

// WithOnComplete sets the callback invoked exactly once when a started
// timeline fully drains.
func WithOnComplete(fn func()) Option {
	return func(s *Scheduler) { s.onComplete = fn }
}

// Scheduler owns one session's action timeline. It polls elapsed time
// on a resettable timer, claims at most one due action per tick, and
// enforces single-flight execution: a second command is never dispatched
// before NotifyActionExecuted acknowledges the first. Commands that come
// due while one is in flight, or before the minimum spacing has elapsed,
// are rendered and pushed onto an overflow FIFO that drains on
// completion notifications.
//
// All methods are safe for concurrent use; completion notifications may
// arrive from a different goroutine than the poll loop.
type Scheduler struct {
	executor   domain.Executor
	log        *logger.Logger
	onComplete func()

	idleTick   time.Duration
	busyTick   time.Duration
	minSpacing time.Duration

	// dispatchMu is held across every executor invocation. Stop takes
	// it after flipping playing, so a command claimed just before Stop
	// either reaches the executor before Stop returns or not at all.
	dispatchMu sync.Mutex

	mu         sync.Mutex
	actions    []domain.Action
	speech     []domain.SpeechSegment
	epoch      time.Time
	playing    bool
	inFlight   bool
	lastFireAt time.Duration // elapsed at last dispatch, 0 = none yet
	overflow   []string      // rendered commands awaiting dispatch
	completed  int
	done       bool // completion already reported for this start
	cancel     context.CancelFunc
}

// New creates a scheduler that dispatches to the given executor.
func New(executor domain.Executor, log *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		executor:   executor,
		log:        log,
		idleTick:   50 * time.Millisecond,
		busyTick:   250 * time.Millisecond,
		minSpacing: 800 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the timeline. Clears the in-flight flag and the
// overflow buffer; does not start the clock. Safe to call mid-playback:
// the swap is atomic and no stale action from the previous script can
// fire afterwards.
func (s *Scheduler) Load(actions []domain.Action, speech []domain.SpeechSegment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.actions = make([]domain.Action, len(actions))
	copy(s.actions, actions)
	s.speech = make([]domain.SpeechSegment, len(speech))
	copy(s.speech, speech)

	s.inFlight = false
	s.overflow = nil
	s.completed = 0
	s.done = false

	s.log.Debug("scheduler: loaded timeline (%d actions, %d segments)", len(actions), len(speech))
}

// Start sets the playback epoch to now and begins the poll loop.
// Calling Start while already playing is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		s.log.Warn("scheduler: start called while already playing")
		return
	}
	s.epoch = time.Now()
	s.playing = true
	s.done = false
	s.lastFireAt = 0

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	s.log.Debug("scheduler: started")
	go s.run(ctx)
}

// Stop halts the poll loop and clears the overflow buffer. After Stop
// returns no further commands reach the executor, including buffered
// ones. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.playing && s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.playing = false
	s.overflow = nil
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	// Wait out a dispatch that already passed the claim point.
	s.dispatchMu.Lock()
	s.dispatchMu.Unlock()
	s.log.Debug("scheduler: stopped")
}

// dispatch hands one command to the executor behind the dispatch gate,
// dropping it if playback stopped after the claim. Executors must
// acknowledge asynchronously; an ack from inside Execute would re-enter
// the gate on the overflow drain path.
func (s *Scheduler) dispatch(command string) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	if !s.playing {
		s.inFlight = false
		s.mu.Unlock()
		s.log.Debug("scheduler: dropping %s claimed before stop", command)
		return
	}
	s.mu.Unlock()

	s.executor.Execute(command)
}

// NotifyActionExecuted acknowledges that the executor finished the
// in-flight command. If the overflow buffer is non-empty the next
// buffered command is dispatched immediately, re-entering in-flight.
// A duplicate notification when nothing is in flight is a no-op.
func (s *Scheduler) NotifyActionExecuted() {
	s.mu.Lock()
	if !s.inFlight {
		s.mu.Unlock()
		s.log.Debug("scheduler: completion notification with nothing in flight, ignoring")
		return
	}
	s.inFlight = false
	s.completed++

	var next string
	if s.playing && len(s.overflow) > 0 {
		next = s.overflow[0]
		s.overflow = s.overflow[1:]
		s.inFlight = true
		s.lastFireAt = time.Since(s.epoch)
		metrics.OverflowDrains.Inc()
	}
	finished := s.checkDoneLocked()
	s.mu.Unlock()

	if next != "" {
		s.log.Debug("scheduler: draining buffered command %s", next)
		s.dispatch(next)
	}
	if finished != nil {
		finished()
	}
}

// run is the poll loop. A resettable timer rather than a fixed ticker:
// the interval depends on whether the previous tick dispatched.
func (s *Scheduler) run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		delay, again := s.tick()
		if !again {
			return
		}
		timer.Reset(delay)
	}
}

// tick claims at most one due action. Returns the delay before the next
// poll and whether the loop should continue.
func (s *Scheduler) tick() (time.Duration, bool) {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return 0, false
	}

	elapsed := time.Since(s.epoch)

	// Callers may hand Load an unsorted slice; re-sort defensively.
	// The sort is stable so equal timestamps keep parse order.
	sort.SliceStable(s.actions, func(i, j int) bool {
		return s.actions[i].DueAt < s.actions[j].DueAt
	})

	var command string
	fired := false
	for i := range s.actions {
		a := &s.actions[i]
		if a.Fired || a.DueAt > elapsed {
			continue
		}

		// Claim exactly once, whether dispatched or buffered.
		a.Fired = true
		rendered := a.Command()

		// Unknown kinds render to nothing. There is nothing to hand
		// the executor and no ack will ever arrive, so count the
		// action done and keep the timeline moving.
		if rendered == "" {
			s.completed++
			s.log.Warn("scheduler: action with unknown kind at %s, skipping", a.DueAt)
			break
		}

		if s.inFlight || (s.lastFireAt > 0 && elapsed-s.lastFireAt < s.minSpacing) {
			s.overflow = append(s.overflow, rendered)
			metrics.ActionsBuffered.Inc()
			s.log.Debug("scheduler: buffered %s (inFlight=%v)", rendered, s.inFlight)
		} else {
			s.inFlight = true
			s.lastFireAt = elapsed
			command = rendered
			fired = true
			metrics.ActionsFired.Inc()
		}
		break // one claim per tick preserves ordering
	}

	finished := s.checkDoneLocked()
	playing := s.playing
	s.mu.Unlock()

	if command != "" {
		s.log.Debug("scheduler: firing %s at %s", command, elapsed.Round(time.Millisecond))
		s.dispatch(command)
	}
	if finished != nil {
		finished()
		return 0, false
	}
	if !playing {
		return 0, false
	}
	if fired {
		return s.busyTick, true
	}
	return s.idleTick, true
}

// checkDoneLocked reports timeline completion. Returns the completion
// callback to invoke (outside the lock), or nil. Fires at most once per
// Start.
func (s *Scheduler) checkDoneLocked() func() {
	if s.done || !s.playing || s.inFlight || len(s.overflow) > 0 {
		return nil
	}
	for _, a := range s.actions {
		if !a.Fired {
			return nil
		}
	}
	s.done = true
	s.playing = false
	elapsed := time.Since(s.epoch)
	metrics.TimelinesCompleted.Inc()
	metrics.TimelineDuration.Observe(elapsed.Seconds())
	s.log.Info("scheduler: timeline complete (%d actions in %s)", len(s.actions), elapsed.Round(time.Millisecond))

	cancel := s.cancel
	s.cancel = nil
	fn := s.onComplete
	return func() {
		if cancel != nil {
			cancel()
		}
		if fn != nil {
			fn()
		}
	}
}

// Playing reports whether the poll loop is active.
func (s *Scheduler) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Remaining returns how many actions have not yet been claimed.
func (s *Scheduler) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.actions {
		if !a.Fired {
			n++
		}
	}
	return n
}

// Progress returns a snapshot of the running timeline.
func (s *Scheduler) Progress() domain.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	var elapsed time.Duration
	if !s.epoch.IsZero() {
		elapsed = time.Since(s.epoch)
	}
	return domain.Progress{
		Elapsed:   elapsed,
		Total:     len(s.actions),
		Completed: s.completed,
		Remaining: len(s.actions) - s.completed,
	}
}

// CurrentSegment returns the narration caption active at the current
// elapsed time: the latest segment whose start is at or before now.
// Segments are time-ordered, so the scan runs newest-first.
func (s *Scheduler) CurrentSegment() (domain.SpeechSegment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch.IsZero() {
		return domain.SpeechSegment{}, false
	}
	elapsed := time.Since(s.epoch)
	for i := len(s.speech) - 1; i >= 0; i-- {
		if s.speech[i].StartAt <= elapsed {
			return s.speech[i], true
		}
	}
	return domain.SpeechSegment{}, false
}
