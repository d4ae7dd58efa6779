package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/purelyricky/aitutor/internal/domain"
	"github.com/purelyricky/aitutor/internal/logger"
	"github.com/purelyricky/aitutor/internal/schedule"
	"github.com/purelyricky/aitutor/internal/storage"
	"github.com/purelyricky/aitutor/internal/vad"
)

type recordingExecutor struct {
	mu       sync.Mutex
	commands []string
}

func (r *recordingExecutor) Execute(command string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
}

func (r *recordingExecutor) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commands)
}

func (r *recordingExecutor) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.commands))
	copy(out, r.commands)
	return out
}

type recordingSink struct {
	mu     sync.Mutex
	chunks int
	stops  int
}

func (s *recordingSink) Enqueue(pcm []byte) {
	s.mu.Lock()
	s.chunks++
	s.mu.Unlock()
}

func (s *recordingSink) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

func (s *recordingSink) QueueLen() int { return 0 }

func (s *recordingSink) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func newTestCoordinator(t *testing.T, exec domain.Executor, sink domain.AudioSink) *Coordinator {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	store := storage.NewMemoryStore(log)
	sess := &domain.Session{ID: "test", Topic: "Calculus"}
	return New(sess, exec, sink, store, log,
		WithCooldown(20*time.Millisecond),
		WithSchedulerOptions(
			schedule.WithIdleTick(5*time.Millisecond),
			schedule.WithBusyTick(5*time.Millisecond),
			schedule.WithMinSpacing(0),
		),
		WithArbiterOptions(
			vad.WithEnergyThreshold(0.2),
			vad.WithMinSpeakingFrames(3),
			vad.WithMaxSilenceFrames(4),
			vad.WithEndDebounce(20*time.Millisecond),
		),
	)
}

func TestLessonPlaysThrough(t *testing.T) {
	exec := &recordingExecutor{}
	sink := &recordingSink{}
	c := newTestCoordinator(t, exec, sink)

	done := make(chan struct{}, 1)
	c.OnComplete = func() { done <- struct{}{} }

	c.LoadResponse("[00:00] Hello {write: \"Hi\"} {draw:circle}")
	c.Start()

	// Both actions are due at t=0; single-flight means the draw waits
	// for the write's ack.
	if !waitFor(t, time.Second, func() bool { return exec.count() == 1 }) {
		t.Fatal("write never dispatched")
	}
	time.Sleep(30 * time.Millisecond)
	if exec.count() != 1 {
		t.Fatalf("draw dispatched before the write was acked: %v", exec.all())
	}

	c.NotifyActionComplete()
	if !waitFor(t, time.Second, func() bool { return exec.count() == 2 }) {
		t.Fatal("draw never dispatched after ack")
	}
	c.NotifyActionComplete()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("completion never reported")
	}

	got := exec.all()
	if got[0] != `{write: "Hi"}` || got[1] != `{draw:circle}` {
		t.Errorf("unexpected command sequence: %v", got)
	}
	if c.Session().Status != domain.SessionCompleted {
		t.Errorf("session status = %s, want completed", c.Session().Status)
	}

	if caption, ok := c.Caption(); !ok || caption != "Hello" {
		t.Errorf("caption = %q ok=%v, want Hello", caption, ok)
	}
}

func TestBargeInStopsAudio(t *testing.T) {
	exec := &recordingExecutor{}
	sink := &recordingSink{}
	c := newTestCoordinator(t, exec, sink)

	var interrupts int
	var mu sync.Mutex
	c.OnInterrupt = func() {
		mu.Lock()
		interrupts++
		mu.Unlock()
	}

	// No audio playing, no guard: sustained speech triggers barge-in.
	for i := 0; i < 3; i++ {
		c.FeedEnergy(0.9)
	}

	mu.Lock()
	got := interrupts
	mu.Unlock()
	if got != 1 {
		t.Fatalf("expected 1 interrupt, got %d", got)
	}
	if sink.stopCount() != 1 {
		t.Errorf("barge-in should stop the audio sink, stops=%d", sink.stopCount())
	}
	if !c.UserSpeaking() {
		t.Error("user should be classified as speaking")
	}
}

func TestAISpeakingGuardSuppressesInterrupt(t *testing.T) {
	exec := &recordingExecutor{}
	sink := &recordingSink{}
	c := newTestCoordinator(t, exec, sink)

	var interrupts int
	var mu sync.Mutex
	c.OnInterrupt = func() {
		mu.Lock()
		interrupts++
		mu.Unlock()
	}

	c.EnqueueAudio([]byte{1, 2, 3, 4})

	for i := 0; i < 6; i++ {
		c.FeedEnergy(0.9)
	}
	mu.Lock()
	got := interrupts
	mu.Unlock()
	if got != 0 {
		t.Fatalf("guard should suppress interrupts while audio queued, got %d", got)
	}

	// Queue drains: cooldown holds the guard briefly, then lifts.
	c.AudioQueueEmpty()
	c.FeedEnergy(0.9)
	mu.Lock()
	got = interrupts
	mu.Unlock()
	if got != 0 {
		t.Fatal("cooldown should still suppress immediately after drain")
	}

	time.Sleep(60 * time.Millisecond) // past the 20ms cooldown
	c.FeedEnergy(0.9)
	if !waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return interrupts == 1
	}) {
		t.Fatal("interrupt should fire once the cooldown lifts")
	}
}

func TestEndOfSpeechSignal(t *testing.T) {
	exec := &recordingExecutor{}
	sink := &recordingSink{}
	c := newTestCoordinator(t, exec, sink)

	ends := make(chan struct{}, 1)
	c.OnEndOfSpeech = func() { ends <- struct{}{} }
	c.OnInterrupt = func() {}

	for i := 0; i < 3; i++ {
		c.FeedEnergy(0.9)
	}
	for i := 0; i < 4; i++ {
		c.FeedEnergy(0.0)
	}

	select {
	case <-ends:
	case <-time.After(time.Second):
		t.Fatal("end-of-speech never emitted")
	}
	if c.UserSpeaking() {
		t.Error("user should be back to silent")
	}
}

func TestStopFlushesAudioAndMarksSession(t *testing.T) {
	exec := &recordingExecutor{}
	sink := &recordingSink{}
	c := newTestCoordinator(t, exec, sink)

	c.LoadResponse("[00:00] {write: \"x\"}\n[59:59] {draw:circle}")
	c.Start()

	if !waitFor(t, time.Second, func() bool { return exec.count() == 1 }) {
		t.Fatal("first action never dispatched")
	}

	c.Stop()
	c.Stop() // idempotent

	if sink.stopCount() == 0 {
		t.Error("stop should flush the audio sink")
	}
	if c.Session().Status != domain.SessionStopped {
		t.Errorf("session status = %s, want stopped", c.Session().Status)
	}

	c.NotifyActionComplete()
	time.Sleep(30 * time.Millisecond)
	if exec.count() != 1 {
		t.Errorf("no dispatches after stop, got %d", exec.count())
	}
}
