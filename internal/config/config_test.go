package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c := Load()

	if c.Server.Port != "8080" {
		t.Errorf("default port = %s, want 8080", c.Server.Port)
	}
	if c.Scheduler.IdleTick != 50*time.Millisecond {
		t.Errorf("default idle tick = %s, want 50ms", c.Scheduler.IdleTick)
	}
	if c.Scheduler.MinSpacing != 800*time.Millisecond {
		t.Errorf("default min spacing = %s, want 800ms", c.Scheduler.MinSpacing)
	}
	if c.VAD.EnergyThreshold != 0.12 {
		t.Errorf("default energy threshold = %v, want 0.12", c.VAD.EnergyThreshold)
	}
	if c.VAD.MinSpeakingFrames != 4 || c.VAD.MaxSilenceFrames != 25 {
		t.Errorf("default hysteresis frames = %d/%d, want 4/25",
			c.VAD.MinSpeakingFrames, c.VAD.MaxSilenceFrames)
	}
	if c.VAD.EndDebounce != 600*time.Millisecond {
		t.Errorf("default end debounce = %s, want 600ms", c.VAD.EndDebounce)
	}
	if !c.Audio.Enabled {
		t.Error("audio should default to enabled")
	}
	if c.Janitor.IdleTimeout != 30*time.Minute {
		t.Errorf("default idle timeout = %s, want 30m", c.Janitor.IdleTimeout)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("VAD_ENERGY_THRESHOLD", "0.3")
	t.Setenv("SCHEDULER_MIN_SPACING_MS", "100")
	t.Setenv("AUDIO_ENABLED", "false")

	c := Load()

	if c.Server.Port != "9999" {
		t.Errorf("port = %s, want 9999", c.Server.Port)
	}
	if c.VAD.EnergyThreshold != 0.3 {
		t.Errorf("energy threshold = %v, want 0.3", c.VAD.EnergyThreshold)
	}
	if c.Scheduler.MinSpacing != 100*time.Millisecond {
		t.Errorf("min spacing = %s, want 100ms", c.Scheduler.MinSpacing)
	}
	if c.Audio.Enabled {
		t.Error("audio should be disabled via env")
	}
}
