// Package config assembles the voice pipeline server's configuration from
// command-line flags, with an optional JSON file overlay for deployment
// environments that prefer file-based config over long flag lists.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
)

// Config holds every tunable the pipeline server needs at startup.
type Config struct {
	ListenAddr     string `json:"listen_addr"`
	HTTPAddr       string `json:"http_addr"`
	SampleRate     int    `json:"sample_rate"`
	Channels       int    `json:"channels"`
	FrameMs        int    `json:"frame_ms"`
	JitterMaxMs    int    `json:"jitter_max_ms"`
	SessionTTL     time.Duration `json:"session_ttl"`
	MaxSessions    int    `json:"max_sessions"`
	VADSensitivity float32 `json:"vad_sensitivity"`
	MetricsLogInterval time.Duration `json:"metrics_log_interval"`
}

// Default returns a Config populated with the pipeline's defaults.
func Default() Config {
	return Config{
		ListenAddr:         ":5004",
		HTTPAddr:           ":8088",
		SampleRate:         16000,
		Channels:           1,
		FrameMs:            20,
		JitterMaxMs:        500,
		SessionTTL:         time.Hour,
		MaxSessions:        10000,
		VADSensitivity:     0.6,
		MetricsLogInterval: 5 * time.Second,
	}
}

// ErrInvalid wraps configuration values that fail validation.
type ErrInvalid struct {
	Field  string
	Reason string
}

func (e *ErrInvalid) Error() string {
	return fmt.Sprintf("config: invalid %s: %s", e.Field, e.Reason)
}

// Validate checks Config invariants that flag.Parse cannot enforce.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return &ErrInvalid{Field: "sample_rate", Reason: "must be positive"}
	}
	if c.Channels <= 0 {
		return &ErrInvalid{Field: "channels", Reason: "must be positive"}
	}
	if c.FrameMs <= 0 {
		return &ErrInvalid{Field: "frame_ms", Reason: "must be positive"}
	}
	if c.VADSensitivity < 0 || c.VADSensitivity > 1 {
		return &ErrInvalid{Field: "vad_sensitivity", Reason: "must be in [0, 1]"}
	}
	if c.MaxSessions <= 0 {
		return &ErrInvalid{Field: "max_sessions", Reason: "must be positive"}
	}
	return nil
}

// LoadFromFile reads a JSON config file and overlays it onto Default(). A
// missing file is not an error — defaults are used unmodified.
func LoadFromFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ParseFlags registers the pipeline server's flags against fs, seeded from
// base, and returns the resulting Config after fs.Parse(args) runs. Flags
// explicitly passed on the command line always win over a JSON file
// overlay supplied via base.
func ParseFlags(fs *flag.FlagSet, args []string, base Config) (Config, error) {
	cfg := base

	fs.StringVar(&cfg.ListenAddr, "listen-addr", base.ListenAddr, "UDP RTP listen address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", base.HTTPAddr, "HTTP status API listen address")
	fs.IntVar(&cfg.SampleRate, "sample-rate", base.SampleRate, "audio sample rate in Hz")
	fs.IntVar(&cfg.Channels, "channels", base.Channels, "audio channel count")
	fs.IntVar(&cfg.FrameMs, "frame-ms", base.FrameMs, "audio frame duration in milliseconds")
	fs.IntVar(&cfg.JitterMaxMs, "jitter-max-ms", base.JitterMaxMs, "jitter buffer depth in milliseconds")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", base.SessionTTL, "session inactivity TTL")
	fs.IntVar(&cfg.MaxSessions, "max-sessions", base.MaxSessions, "maximum concurrent sessions")
	vadSensitivity := fs.Float64("vad-sensitivity", float64(base.VADSensitivity), "VAD sensitivity in [0,1]")
	fs.DurationVar(&cfg.MetricsLogInterval, "metrics-log-interval", base.MetricsLogInterval, "interval between periodic metrics log lines")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	cfg.VADSensitivity = float32(*vadSensitivity)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
