// Package vad implements the voice-activity arbiter: a two-state
// speaking/silent machine over a stream of normalized energy samples,
// with consecutive-frame hysteresis, a suppression guard against the
// engine's own audio output, and a debounced end-of-speech edge.
package vad

import (
	"sync"
	"time"

	"github.com/purelyricky/aitutor/internal/domain"
	"github.com/purelyricky/aitutor/internal/logger"
	"github.com/purelyricky/aitutor/internal/metrics"
)

// Option configures the arbiter.
type Option func(*Arbiter)

// WithEnergyThreshold sets the level a sample must reach to count as
// speech. Tuned to reject room noise while catching speech onset.
func WithEnergyThreshold(v float64) Option {
	return func(a *Arbiter) { a.threshold = v }
}

// WithMinSpeakingFrames sets how many consecutive loud samples trigger
// the speaking transition. Large enough to reject coughs and clicks.
func WithMinSpeakingFrames(n int) Option {
	return func(a *Arbiter) { a.minSpeakingFrames = n }
}

// WithMaxSilenceFrames sets how many consecutive quiet samples end the
// speaking state. Chosen larger than the speaking threshold to tolerate
// natural mid-sentence pauses.
func WithMaxSilenceFrames(n int) Option {
	return func(a *Arbiter) { a.maxSilenceFrames = n }
}

// WithEndDebounce sets the delay between the silent transition and the
// end-of-speech emission, so trailing syllables aren't truncated.
func WithEndDebounce(d time.Duration) Option {
	return func(a *Arbiter) { a.endDebounce = d }
}

// Arbiter classifies a periodic energy-sample stream into speaking and
// silent states and emits interrupt / end-of-speech edges to its sink.
//
// The suppression guard (AI speaking, post-speech cooldown, or a
// response being prepared) withholds the speaking transition but the
// run-length counters keep advancing, so detection is not delayed once
// the guard lifts. Safe for concurrent use: the sample feed and the
// guard-flag setters may run on different goroutines.
type Arbiter struct {
	sink domain.SignalSink
	log  *logger.Logger

	threshold         float64
	minSpeakingFrames int
	maxSilenceFrames  int
	endDebounce       time.Duration

	mu           sync.Mutex
	speakingRun  int
	silenceRun   int
	userSpeaking bool

	aiSpeaking         bool
	cooldown           bool
	responseInProgress bool

	pendingEnd *time.Timer
	endGen     int // invalidates stale debounce callbacks
}

// New creates an arbiter that reports edges to sink.
func New(sink domain.SignalSink, log *logger.Logger, opts ...Option) *Arbiter {
	a := &Arbiter{
		sink:              sink,
		log:               log,
		threshold:         0.12,
		minSpeakingFrames: 4,
		maxSilenceFrames:  25,
		endDebounce:       600 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetAISpeaking records whether lesson audio is currently playing.
func (a *Arbiter) SetAISpeaking(v bool) {
	a.mu.Lock()
	a.aiSpeaking = v
	a.mu.Unlock()
}

// SetCooldown records the post-speech cooldown window.
func (a *Arbiter) SetCooldown(v bool) {
	a.mu.Lock()
	a.cooldown = v
	a.mu.Unlock()
}

// SetResponseInProgress records whether a response is being prepared or
// streamed upstream.
func (a *Arbiter) SetResponseInProgress(v bool) {
	a.mu.Lock()
	a.responseInProgress = v
	a.mu.Unlock()
}

// UserSpeaking reports whether the arbiter currently attributes the
// microphone signal to the user. Upstream uses this as the
// forward-my-audio gate.
func (a *Arbiter) UserSpeaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userSpeaking
}

// Reset clears the run-length counters and any pending end-of-speech.
// Called when lesson audio starts so stale counts from before playback
// can't trigger an instant interrupt.
func (a *Arbiter) Reset() {
	a.mu.Lock()
	a.speakingRun = 0
	a.silenceRun = 0
	a.userSpeaking = false
	if a.pendingEnd != nil {
		a.pendingEnd.Stop()
		a.pendingEnd = nil
	}
	a.mu.Unlock()
}

// Process consumes one energy sample in [0,1]. Out-of-range samples are
// clamped, not rejected. Call at a steady cadence.
func (a *Arbiter) Process(energy float64) {
	if energy < 0 {
		energy = 0
	} else if energy > 1 {
		energy = 1
	}
	metrics.VADSamples.Inc()

	a.mu.Lock()
	var interrupt bool

	if !a.userSpeaking {
		if energy >= a.threshold {
			a.speakingRun++
			a.silenceRun = 0
			if a.speakingRun >= a.minSpeakingFrames {
				if a.suppressedLocked() {
					// Keep counting; the transition fires on the first
					// clear sample after the guard lifts.
					metrics.GuardBlocks.Inc()
				} else {
					a.userSpeaking = true
					a.silenceRun = 0
					if a.pendingEnd != nil {
						a.pendingEnd.Stop()
						a.pendingEnd = nil
						metrics.DebounceCancels.Inc()
						a.log.Debug("vad: speech resumed, pending end-of-speech cancelled")
					}
					interrupt = true
					metrics.VADStarts.Inc()
					metrics.Interrupts.Inc()
				}
			}
		} else {
			a.speakingRun = 0
		}
		a.mu.Unlock()

		if interrupt {
			a.log.Info("vad: user speech detected, interrupting")
			a.sink.Interrupt()
		}
		return
	}

	// Currently speaking — watch for sustained silence.
	if energy < a.threshold {
		a.silenceRun++
		if a.silenceRun >= a.maxSilenceFrames {
			a.userSpeaking = false
			a.speakingRun = 0
			a.silenceRun = 0
			a.armEndOfSpeechLocked()
		}
	} else {
		a.silenceRun = 0
	}
	a.mu.Unlock()
}

// suppressedLocked derives the guard from the external flags. Computed
// fresh on every sample, never persisted.
func (a *Arbiter) suppressedLocked() bool {
	return a.aiSpeaking || a.cooldown || a.responseInProgress
}

// armEndOfSpeechLocked schedules the debounced end-of-speech emission.
// A speaking transition before the debounce elapses cancels it.
func (a *Arbiter) armEndOfSpeechLocked() {
	if a.pendingEnd != nil {
		a.pendingEnd.Stop()
	}
	a.endGen++
	gen := a.endGen
	a.log.Debug("vad: silence threshold reached, debouncing end-of-speech (%s)", a.endDebounce)
	a.pendingEnd = time.AfterFunc(a.endDebounce, func() {
		a.mu.Lock()
		if a.pendingEnd == nil || a.endGen != gen || a.userSpeaking {
			a.mu.Unlock()
			return
		}
		a.pendingEnd = nil
		a.mu.Unlock()

		metrics.VADEnds.Inc()
		a.log.Info("vad: end of speech")
		a.sink.EndOfSpeech()
	})
}
