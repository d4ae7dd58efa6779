// Package audio provides the engine's audio boundary: a sequential PCM
// queue player for lesson speech and a microphone capture that feeds
// the arbiter normalized energy samples.
package audio

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/purelyricky/aitutor/internal/domain"
	"github.com/purelyricky/aitutor/internal/logger"
)

// Audio parameters for lesson speech chunks: 24 kHz mono signed 16-bit,
// matching the upstream speech API's PCM output.
const (
	SampleRate   = 24000
	ChannelCount = 1
	BitDepth     = 16
)

// Compile-time interface check.
var _ domain.AudioSink = (*Player)(nil)

// PlayerOption configures the player.
type PlayerOption func(*Player)

// WithQueueCapacity sets how many chunks can wait unplayed before
// Enqueue starts dropping.
func WithQueueCapacity(n int) PlayerOption {
	return func(p *Player) { p.queue = make(chan []byte, n) }
}

// Player plays raw PCM chunks strictly in arrival order through oto.
// One chunk plays at a time; the rest wait in a bounded queue.
//
// OnChunkEnd fires after each chunk finishes. OnQueueEmpty fires when a
// chunk finishes and nothing is waiting — the coordinator maps these to
// the ai-speaking flag and the post-speech cooldown. Set both before
// calling Start.
type Player struct {
	ctx *oto.Context
	log *logger.Logger

	queue chan []byte

	OnChunkEnd   func()
	OnQueueEmpty func()

	mu      sync.Mutex
	active  *oto.Player // currently playing, nil when idle
	playing bool        // a chunk is being drained right now
	dropped int
}

// NewPlayer initializes the system audio context. Returns an error if
// the audio device is unavailable.
func NewPlayer(log *logger.Logger, opts ...PlayerOption) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	p := &Player{
		ctx:   ctx,
		log:   log,
		queue: make(chan []byte, 64),
	}
	for _, opt := range opts {
		opt(p)
	}

	log.Debug("audio player initialized (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return p, nil
}

// Start runs the drain loop until ctx is cancelled. Call in a goroutine.
func (p *Player) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pcm := <-p.queue:
			p.playChunk(pcm)

			if p.OnChunkEnd != nil {
				p.OnChunkEnd()
			}
			if len(p.queue) == 0 && p.OnQueueEmpty != nil {
				p.OnQueueEmpty()
			}
		}
	}
}

// Enqueue queues one PCM chunk for playback. Never blocks: when the
// queue is full the chunk is dropped and counted.
func (p *Player) Enqueue(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	select {
	case p.queue <- pcm:
	default:
		p.mu.Lock()
		p.dropped++
		n := p.dropped
		p.mu.Unlock()
		p.log.Warn("audio player: queue full, dropped chunk (%d total)", n)
	}
}

// Stop interrupts the current chunk and flushes everything waiting.
// Used on barge-in. Safe to call concurrently and when idle.
func (p *Player) Stop() {
	// Flush pending chunks first so the drain loop has nothing to pick up.
	for {
		select {
		case <-p.queue:
		default:
			goto flushed
		}
	}
flushed:
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active != nil {
		active.Pause()
		p.log.Debug("audio player: playback interrupted")
	}
}

// QueueLen returns the number of chunks waiting plus the one playing.
func (p *Player) QueueLen() int {
	n := len(p.queue)
	p.mu.Lock()
	if p.playing {
		n++
	}
	p.mu.Unlock()
	return n
}

// playChunk plays one chunk synchronously, polling until the device
// drains it or Stop pauses it.
func (p *Player) playChunk(pcm []byte) {
	player := p.ctx.NewPlayer(bytes.NewReader(pcm))

	p.mu.Lock()
	p.active = player
	p.playing = true
	p.mu.Unlock()

	player.Play()
	p.log.Debug("audio player: playing %d bytes of PCM", len(pcm))

	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}

	p.mu.Lock()
	p.active = nil
	p.playing = false
	p.mu.Unlock()

	_ = player.Close()
}
