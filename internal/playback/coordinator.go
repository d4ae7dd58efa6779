// Package playback implements the coordinator that wires a lesson
// session together: script text into the parser and scheduler, the
// audio queue's state into the arbiter's suppression guard, and the
// arbiter's edge signals out to the transport.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/purelyricky/aitutor/internal/domain"
	"github.com/purelyricky/aitutor/internal/logger"
	"github.com/purelyricky/aitutor/internal/schedule"
	"github.com/purelyricky/aitutor/internal/script"
	"github.com/purelyricky/aitutor/internal/vad"
)

// Compile-time interface check: the coordinator is the arbiter's sink.
var _ domain.SignalSink = (*Coordinator)(nil)

// Option configures the coordinator.
type Option func(*Coordinator)

// WithCooldown sets the post-speech window during which interrupts stay
// suppressed, absorbing echo tails after the audio queue drains.
func WithCooldown(d time.Duration) Option {
	return func(c *Coordinator) { c.cooldown = d }
}

// WithSchedulerOptions forwards options to the embedded scheduler.
func WithSchedulerOptions(opts ...schedule.Option) Option {
	return func(c *Coordinator) { c.schedOpts = append(c.schedOpts, opts...) }
}

// WithArbiterOptions forwards options to the embedded arbiter.
func WithArbiterOptions(opts ...vad.Option) Option {
	return func(c *Coordinator) { c.arbOpts = append(c.arbOpts, opts...) }
}

// Coordinator owns one lesson session's playback pipeline.
//
// Inbound: LoadResponse (script text), Start/Stop, NotifyActionComplete
// (executor acks), FeedEnergy (microphone samples), EnqueueAudio
// (synthesized speech chunks), SetResponseInProgress (transport state).
// Outbound: the executor passed at construction, plus the OnComplete,
// OnInterrupt, and OnEndOfSpeech callbacks. Set callbacks before use.
type Coordinator struct {
	log   *logger.Logger
	sink  domain.AudioSink
	store domain.SessionStore

	sched     *schedule.Scheduler
	arb       *vad.Arbiter
	schedOpts []schedule.Option
	arbOpts   []vad.Option

	cooldown time.Duration

	OnComplete    func()
	OnInterrupt   func()
	OnEndOfSpeech func()

	mu            sync.Mutex
	session       *domain.Session
	cooldownTimer *time.Timer
	aiSpeaking    bool
}

// New creates a coordinator for one session. Executor receives rendered
// whiteboard commands; sink receives lesson speech audio.
func New(session *domain.Session, executor domain.Executor, sink domain.AudioSink, store domain.SessionStore, log *logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		log:      log,
		sink:     sink,
		store:    store,
		session:  session,
		cooldown: 800 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.schedOpts = append(c.schedOpts, schedule.WithOnComplete(c.timelineComplete))
	c.sched = schedule.New(executor, log, c.schedOpts...)
	c.arb = vad.New(c, log, c.arbOpts...)
	return c
}

// LoadResponse parses a lesson script and installs its timelines.
// Does not start playback. Safe to call mid-playback: the timeline is
// swapped atomically and stale actions never fire.
func (c *Coordinator) LoadResponse(text string) {
	res := script.Parse(text)
	c.sched.Load(res.Actions, res.Speech)

	c.mu.Lock()
	c.session.Total = len(res.Actions)
	c.session.Completed = 0
	c.session.UpdatedAt = time.Now()
	sess := *c.session
	c.mu.Unlock()

	c.saveSession(&sess)
	c.log.Info("session %s: loaded script (%d actions, %d segments)", sess.ID, len(res.Actions), len(res.Speech))
}

// Start begins walking the timeline against wall-clock time.
func (c *Coordinator) Start() {
	c.arb.Reset()
	c.sched.Start()

	c.mu.Lock()
	c.session.Status = domain.SessionPlaying
	c.session.StartedAt = time.Now()
	c.session.UpdatedAt = time.Now()
	sess := *c.session
	c.mu.Unlock()

	c.saveSession(&sess)
}

// Stop halts playback and flushes queued audio. Idempotent.
func (c *Coordinator) Stop() {
	c.sched.Stop()
	c.sink.Stop()
	c.setAISpeaking(false)

	c.mu.Lock()
	if c.session.Status == domain.SessionPlaying {
		c.session.Status = domain.SessionStopped
	}
	c.session.UpdatedAt = time.Now()
	sess := *c.session
	c.mu.Unlock()

	c.saveSession(&sess)
}

// NotifyActionComplete acknowledges the in-flight whiteboard command.
// Call exactly once per executor invocation.
func (c *Coordinator) NotifyActionComplete() {
	c.sched.NotifyActionExecuted()

	c.mu.Lock()
	c.session.Completed = c.sched.Progress().Completed
	c.session.UpdatedAt = time.Now()
	c.mu.Unlock()
}

// FeedEnergy consumes one microphone energy sample in [0,1].
func (c *Coordinator) FeedEnergy(energy float64) {
	c.arb.Process(energy)
}

// EnqueueAudio queues one synthesized speech chunk for playback and
// raises the ai-speaking guard.
func (c *Coordinator) EnqueueAudio(pcm []byte) {
	c.mu.Lock()
	wasIdle := !c.aiSpeaking
	c.aiSpeaking = true
	c.mu.Unlock()

	if wasIdle {
		// Fresh utterance: stale mic counts from before playback must
		// not fire the moment the guard lifts again.
		c.arb.Reset()
		c.arb.SetAISpeaking(true)
	}
	c.sink.Enqueue(pcm)
}

// AudioChunkEnded is the sink's chunk-end notification. While more
// chunks wait, the ai-speaking guard stays up.
func (c *Coordinator) AudioChunkEnded() {
	if c.sink.QueueLen() > 0 {
		return
	}
	c.audioDrained()
}

// AudioQueueEmpty is the sink's drain notification: ai-speaking drops
// and the post-speech cooldown window opens.
func (c *Coordinator) AudioQueueEmpty() {
	c.audioDrained()
}

func (c *Coordinator) audioDrained() {
	c.setAISpeaking(false)

	c.arb.SetCooldown(true)
	c.mu.Lock()
	if c.cooldownTimer != nil {
		c.cooldownTimer.Stop()
	}
	c.cooldownTimer = time.AfterFunc(c.cooldown, func() {
		c.arb.SetCooldown(false)
	})
	c.mu.Unlock()
}

// SetResponseInProgress records that the upstream is preparing or
// streaming a response; interrupts stay suppressed meanwhile.
func (c *Coordinator) SetResponseInProgress(v bool) {
	c.arb.SetResponseInProgress(v)
}

// UserSpeaking reports the arbiter's current classification. Upstream
// uses it as the forward-microphone-audio gate.
func (c *Coordinator) UserSpeaking() bool {
	return c.arb.UserSpeaking()
}

// Interrupt implements domain.SignalSink: the user started talking over
// the lesson. Playback audio stops immediately (barge-in); the signal
// is forwarded upstream.
func (c *Coordinator) Interrupt() {
	c.sink.Stop()
	c.setAISpeaking(false)
	c.log.Info("session %s: barge-in, audio stopped", c.sessionID())

	if c.OnInterrupt != nil {
		c.OnInterrupt()
	}
}

// EndOfSpeech implements domain.SignalSink: the user finished talking.
func (c *Coordinator) EndOfSpeech() {
	if c.OnEndOfSpeech != nil {
		c.OnEndOfSpeech()
	}
}

// Caption returns the narration text active right now.
func (c *Coordinator) Caption() (string, bool) {
	seg, ok := c.sched.CurrentSegment()
	return seg.Text, ok
}

// Progress returns a snapshot of the running timeline.
func (c *Coordinator) Progress() domain.Progress {
	return c.sched.Progress()
}

// Remaining returns the number of unclaimed actions.
func (c *Coordinator) Remaining() int {
	return c.sched.Remaining()
}

// Session returns a copy of the session record.
func (c *Coordinator) Session() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.session
}

// timelineComplete runs once per drained timeline.
func (c *Coordinator) timelineComplete() {
	c.mu.Lock()
	c.session.Status = domain.SessionCompleted
	c.session.Completed = c.session.Total
	c.session.UpdatedAt = time.Now()
	sess := *c.session
	c.mu.Unlock()

	c.saveSession(&sess)

	if c.OnComplete != nil {
		c.OnComplete()
	}
}

func (c *Coordinator) setAISpeaking(v bool) {
	c.mu.Lock()
	c.aiSpeaking = v
	c.mu.Unlock()
	c.arb.SetAISpeaking(v)
}

func (c *Coordinator) sessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

func (c *Coordinator) saveSession(sess *domain.Session) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(context.Background(), sess); err != nil {
		c.log.Error("session %s: save failed: %v", sess.ID, err)
	}
}
