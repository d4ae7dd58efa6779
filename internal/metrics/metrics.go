// Package metrics exposes Prometheus instrumentation for the playback
// engine. Registration happens at init via promauto; the server serves
// the default registry on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActionsFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitutor_actions_fired_total",
		Help: "Actions handed directly to the executor",
	})

	ActionsBuffered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitutor_actions_buffered_total",
		Help: "Actions deferred to the overflow buffer by spacing or single-flight rules",
	})

	OverflowDrains = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitutor_overflow_drains_total",
		Help: "Buffered actions dispatched on completion notifications",
	})

	TimelinesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitutor_timelines_completed_total",
		Help: "Timelines fully drained (completion callback fired)",
	})

	TimelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aitutor_timeline_duration_seconds",
		Help:    "Wall-clock duration from start to completion of a timeline",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	VADSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitutor_vad_samples_total",
		Help: "Energy samples processed by the arbiter",
	})

	VADStarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitutor_vad_starts_total",
		Help: "Silent-to-speaking transitions",
	})

	VADEnds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitutor_vad_ends_total",
		Help: "Speaking-to-silent transitions (after debounce)",
	})

	Interrupts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitutor_interrupts_total",
		Help: "Interrupt signals emitted",
	})

	GuardBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitutor_guard_blocks_total",
		Help: "Speaking transitions withheld by the suppression guard",
	})

	DebounceCancels = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitutor_debounce_cancels_total",
		Help: "Pending end-of-speech emissions cancelled by resumed speech",
	})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aitutor_sessions_active",
		Help: "Live coordinators held by the session manager",
	})
)
