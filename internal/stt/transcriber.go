// Package stt turns the user's interjections into text using a local
// Whisper model. Recording is edge-driven: an interrupt signal opens an
// utterance, the end-of-speech signal closes it and produces the
// transcript.
package stt

import (
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/purelyricky/aitutor/internal/logger"
)

// envAnnotation matches whisper environmental annotations like
// "(keyboard clicking)", "[laughter]", "(speaking French)", etc.
var envAnnotation = regexp.MustCompile(`[\(\[][a-zA-Z][a-zA-Z\s]*[\)\]]`)

// Option configures the transcriber.
type Option func(*Transcriber)

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) Option {
	return func(t *Transcriber) { t.tempDir = dir }
}

// WithMaxUtterance caps how long a single utterance may record before
// it is force-closed.
func WithMaxUtterance(d time.Duration) Option {
	return func(t *Transcriber) { t.maxUtterance = d }
}

// Transcriber records one utterance at a time and hands the cleaned
// transcript to OnTranscript. Set OnTranscript before use.
//
// BeginUtterance and EndUtterance map directly onto the arbiter's
// interrupt and end-of-speech edges: recording covers exactly the span
// the engine classified as user speech, plus the debounce tail.
type Transcriber struct {
	whisperBin string
	modelPath  string
	tempDir    string
	log        *logger.Logger

	maxUtterance time.Duration

	// OnTranscript receives the cleaned transcript of each utterance.
	// Empty or hallucinated transcriptions are dropped before this.
	OnTranscript func(text string)

	mu        sync.Mutex
	stop      func()
	guardStop *time.Timer
}

// New creates a transcriber.
//
//   - whisperBin: path to the whisper-cli executable
//   - modelPath:  path to the GGML model file
func New(whisperBin, modelPath string, log *logger.Logger, opts ...Option) *Transcriber {
	t := &Transcriber{
		whisperBin:   whisperBin,
		modelPath:    modelPath,
		tempDir:      ".aitutor-stt",
		log:          log,
		maxUtterance: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}

	// Validate that the whisper binary is reachable.
	if _, err := exec.LookPath(t.whisperBin); err != nil {
		log.Error("stt: whisper binary %q not found in PATH: %v", t.whisperBin, err)
	}

	return t
}

// BeginUtterance starts recording. No-op if an utterance is already
// open. The recording is force-closed after the max utterance window.
func (t *Transcriber) BeginUtterance() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		return
	}

	callback := func(text string) {
		text = cleanTranscription(text)
		if text == "" {
			t.log.Debug("stt: utterance transcribed to nothing")
			return
		}
		t.log.Info("stt: heard %q", text)
		if t.OnTranscript != nil {
			t.OnTranscript(text)
		}
	}

	verbose := t.log.GetLevel() >= logger.LevelVerbose
	rec, err := audiotranscriber.NewTranscriber(
		t.whisperBin,
		t.modelPath,
		t.tempDir,
		"wav",
		callback,
		verbose,
	)
	if err != nil {
		t.log.Error("stt: transcriber init failed: %v", err)
		return
	}

	if err := rec.Start(); err != nil {
		t.log.Error("stt: recording start failed: %v", err)
		return
	}

	t.log.Debug("stt: utterance opened")
	t.stop = func() { rec.Stop() }
	t.guardStop = time.AfterFunc(t.maxUtterance, func() {
		t.log.Warn("stt: utterance exceeded %s, force-closing", t.maxUtterance)
		t.EndUtterance()
	})
}

// EndUtterance stops recording and lets the transcription callback run.
// No-op if nothing is recording.
func (t *Transcriber) EndUtterance() {
	t.mu.Lock()
	stop := t.stop
	t.stop = nil
	if t.guardStop != nil {
		t.guardStop.Stop()
		t.guardStop = nil
	}
	t.mu.Unlock()

	if stop == nil {
		return
	}
	t.log.Debug("stt: utterance closed")
	stop()
}

// cleanTranscription strips whitespace, normalizes newlines, and
// removes common whisper artifacts like "[BLANK_AUDIO]", "(silence)",
// and timestamp prefixes. Known hallucinations are discarded entirely.
func cleanTranscription(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)

	junkPatterns := []string{
		"[BLANK_AUDIO]",
		"[BLANK AUDIO]",
		"(silence)",
		"[silence]",
		"(no speech)",
		"[no speech]",
		"[Music]",
		"(music)",
		"(background noise)",
		"(inaudible)",
		"(unintelligible)",
	}
	for _, j := range junkPatterns {
		s = strings.ReplaceAll(s, j, "")
		s = strings.ReplaceAll(s, strings.ToLower(j), "")
		s = strings.ReplaceAll(s, strings.ToUpper(j), "")
	}

	// Catch-all for remaining (parenthesized) or [bracketed]
	// environmental annotations.
	s = envAnnotation.ReplaceAllString(s, "")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	s = strings.TrimSpace(s)

	hallucinations := []string{
		"...",
		"you",
		"Thank you.",
		"Thanks for watching!",
		"Thank you for watching.",
		"Bye.",
		"Bye!",
		"The end.",
	}
	lower := strings.ToLower(s)
	for _, h := range hallucinations {
		if strings.ToLower(h) == lower {
			return ""
		}
	}

	// Strip whisper timestamp prefixes like "[00:00:00.000 --> 00:00:05.000]".
	if strings.HasPrefix(s, "[") {
		if idx := strings.Index(s, "]"); idx != -1 && idx < 40 {
			rest := strings.TrimSpace(s[idx+1:])
			if rest != "" {
				return rest
			}
		}
	}

	return s
}
