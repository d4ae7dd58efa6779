package audio

import (
	"github.com/purelyricky/aitutor/internal/domain"
	"github.com/purelyricky/aitutor/internal/logger"
)

// Compile-time interface check.
var _ domain.AudioSink = (*NoOpSink)(nil)

// NoOpSink is an audio sink that discards everything. Used when audio
// output is disabled and in tests.
type NoOpSink struct {
	log *logger.Logger
}

// NewNoOpSink creates a no-op audio sink.
func NewNoOpSink(log *logger.Logger) *NoOpSink {
	return &NoOpSink{log: log}
}

// Enqueue discards the chunk.
func (n *NoOpSink) Enqueue(pcm []byte) {
	n.log.Debug("audio no-op: would play %d bytes", len(pcm))
}

// Stop does nothing.
func (n *NoOpSink) Stop() {}

// QueueLen always reports an empty queue.
func (n *NoOpSink) QueueLen() int { return 0 }
