// Package config loads engine configuration from the environment with
// sane defaults for every tuning knob.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries every externally tunable setting of the engine.
type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}
	Scheduler struct {
		IdleTick   time.Duration
		BusyTick   time.Duration
		MinSpacing time.Duration
	}
	VAD struct {
		EnergyThreshold   float64
		MinSpeakingFrames int
		MaxSilenceFrames  int
		EndDebounce       time.Duration
		Cooldown          time.Duration
	}
	Whisper struct {
		Bin     string
		Model   string
		TempDir string
	}
	Audio struct {
		Enabled       bool
		QueueCapacity int
		CaptureRate   uint32
	}
	Janitor struct {
		SweepInterval time.Duration
		IdleTimeout   time.Duration
		Retention     time.Duration
	}
}

// Load reads configuration from the environment. Every key has a
// default so a bare environment still yields a working engine.
func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("scheduler.idle_tick_ms", 50)
	v.SetDefault("scheduler.busy_tick_ms", 250)
	v.SetDefault("scheduler.min_spacing_ms", 800)

	v.SetDefault("vad.energy_threshold", 0.12)
	v.SetDefault("vad.min_speaking_frames", 4)
	v.SetDefault("vad.max_silence_frames", 25)
	v.SetDefault("vad.end_debounce_ms", 600)
	v.SetDefault("vad.cooldown_ms", 800)

	v.SetDefault("whisper.bin", "whisper-cli")
	v.SetDefault("whisper.model", "models/ggml-base.en.bin")
	v.SetDefault("whisper.temp_dir", ".aitutor-stt")

	v.SetDefault("audio.enabled", true)
	v.SetDefault("audio.queue_capacity", 64)
	v.SetDefault("audio.capture_rate", 16000)

	v.SetDefault("janitor.sweep_interval_sec", 60)
	v.SetDefault("janitor.idle_timeout_sec", 1800)
	v.SetDefault("janitor.retention_sec", 3600)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("scheduler.idle_tick_ms", "SCHEDULER_IDLE_TICK_MS")
	v.BindEnv("scheduler.busy_tick_ms", "SCHEDULER_BUSY_TICK_MS")
	v.BindEnv("scheduler.min_spacing_ms", "SCHEDULER_MIN_SPACING_MS")

	v.BindEnv("vad.energy_threshold", "VAD_ENERGY_THRESHOLD")
	v.BindEnv("vad.min_speaking_frames", "VAD_MIN_SPEAKING_FRAMES")
	v.BindEnv("vad.max_silence_frames", "VAD_MAX_SILENCE_FRAMES")
	v.BindEnv("vad.end_debounce_ms", "VAD_END_DEBOUNCE_MS")
	v.BindEnv("vad.cooldown_ms", "VAD_COOLDOWN_MS")

	v.BindEnv("whisper.bin", "WHISPER_BIN")
	v.BindEnv("whisper.model", "WHISPER_MODEL")
	v.BindEnv("whisper.temp_dir", "WHISPER_TEMP_DIR")

	v.BindEnv("audio.enabled", "AUDIO_ENABLED")
	v.BindEnv("audio.queue_capacity", "AUDIO_QUEUE_CAPACITY")
	v.BindEnv("audio.capture_rate", "AUDIO_CAPTURE_RATE")

	v.BindEnv("janitor.sweep_interval_sec", "JANITOR_SWEEP_INTERVAL_SEC")
	v.BindEnv("janitor.idle_timeout_sec", "JANITOR_IDLE_TIMEOUT_SEC")
	v.BindEnv("janitor.retention_sec", "JANITOR_RETENTION_SEC")

	var c Config
	c.Server.Port = v.GetString("server.port")
	c.Server.LogLevel = v.GetString("server.log_level")

	c.Scheduler.IdleTick = time.Duration(v.GetInt("scheduler.idle_tick_ms")) * time.Millisecond
	c.Scheduler.BusyTick = time.Duration(v.GetInt("scheduler.busy_tick_ms")) * time.Millisecond
	c.Scheduler.MinSpacing = time.Duration(v.GetInt("scheduler.min_spacing_ms")) * time.Millisecond

	c.VAD.EnergyThreshold = v.GetFloat64("vad.energy_threshold")
	c.VAD.MinSpeakingFrames = v.GetInt("vad.min_speaking_frames")
	c.VAD.MaxSilenceFrames = v.GetInt("vad.max_silence_frames")
	c.VAD.EndDebounce = time.Duration(v.GetInt("vad.end_debounce_ms")) * time.Millisecond
	c.VAD.Cooldown = time.Duration(v.GetInt("vad.cooldown_ms")) * time.Millisecond

	c.Whisper.Bin = v.GetString("whisper.bin")
	c.Whisper.Model = v.GetString("whisper.model")
	c.Whisper.TempDir = v.GetString("whisper.temp_dir")

	c.Audio.Enabled = v.GetBool("audio.enabled")
	c.Audio.QueueCapacity = v.GetInt("audio.queue_capacity")
	c.Audio.CaptureRate = v.GetUint32("audio.capture_rate")

	c.Janitor.SweepInterval = time.Duration(v.GetInt("janitor.sweep_interval_sec")) * time.Second
	c.Janitor.IdleTimeout = time.Duration(v.GetInt("janitor.idle_timeout_sec")) * time.Second
	c.Janitor.Retention = time.Duration(v.GetInt("janitor.retention_sec")) * time.Second

	return c
}
