package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got %v", err)
	}
}

func TestValidateRejectsBadSampleRate(t *testing.T) {
	cfg := Default()
	cfg.SampleRate = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestValidateRejectsOutOfRangeVADSensitivity(t *testing.T) {
	cfg := Default()
	cfg.VADSensitivity = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range VAD sensitivity")
	}
}

func TestLoadFromFileMissingReturnsDefault(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults for missing file, got %+v", cfg)
	}
}

func TestLoadFromFileEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := LoadFromFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults for empty path, got %+v", cfg)
	}
}

func TestLoadFromFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"listen_addr": ":9999", "sample_rate": 48000}`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("listen addr: got %q, want %q", cfg.ListenAddr, ":9999")
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("sample rate: got %d, want 48000", cfg.SampleRate)
	}
	if cfg.Channels != Default().Channels {
		t.Errorf("expected unspecified field to retain default, got %d", cfg.Channels)
	}
}

func TestParseFlagsOverridesBase(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := ParseFlags(fs, []string{"-sample-rate=48000", "-vad-sensitivity=0.8"}, Default())
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("sample rate: got %d, want 48000", cfg.SampleRate)
	}
	if cfg.VADSensitivity != 0.8 {
		t.Errorf("vad sensitivity: got %f, want 0.8", cfg.VADSensitivity)
	}
	if cfg.ListenAddr != Default().ListenAddr {
		t.Errorf("expected unspecified flag to retain base value, got %q", cfg.ListenAddr)
	}
}

func TestParseFlagsRejectsInvalidResult(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if _, err := ParseFlags(fs, []string{"-sample-rate=0"}, Default()); err == nil {
		t.Fatal("expected validation error for sample-rate=0")
	}
}
