// ABOUTME: Tests for layered configuration loading
// ABOUTME: Covers defaults, YAML files, environment variables and overrides
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Desdaemon/yume-jukebox/pkg/audio/output"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend != "malgo" || cfg.Format != "s16" || cfg.BufferFrames != 256 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Pitch != 1 || cfg.PitchStep != 0.05 {
		t.Errorf("unexpected pitch defaults %v/%v", cfg.Pitch, cfg.PitchStep)
	}
	if cfg.Log.Level != "info" || len(cfg.Log.Outputs) != 1 || cfg.Log.Outputs[0] != "stdout" {
		t.Errorf("unexpected log defaults %+v", cfg.Log)
	}
	if cfg.File != "" {
		t.Errorf("expected no config file, got %s", cfg.File)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
backend: "null"
format: f32
buffer_frames: 512
pitch: 1.25
start_paused: true
log:
  level: debug
  outputs: [stdout, /tmp/yume.log]
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend != "null" || cfg.Format != "f32" || cfg.BufferFrames != 512 {
		t.Errorf("unexpected stream settings %+v", cfg)
	}
	if cfg.Pitch != 1.25 || !cfg.StartPaused {
		t.Errorf("unexpected playback settings %+v", cfg)
	}
	if cfg.Log.Level != "debug" || len(cfg.Log.Outputs) != 2 {
		t.Errorf("unexpected log settings %+v", cfg.Log)
	}
	if cfg.File != path {
		t.Errorf("expected file %s, got %s", path, cfg.File)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, "pitch: 1.5\nbackend: oto\nbuffer_frames: 128\n")
	t.Setenv("YUME_PITCH", "2")
	t.Setenv("YUME_LOG_LEVEL", "warn")

	cfg, err := Load(path, map[string]any{"backend": "null"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pitch != 2 {
		t.Errorf("environment should beat the file, got pitch %v", cfg.Pitch)
	}
	if cfg.Backend != "null" {
		t.Errorf("override should beat the file, got backend %s", cfg.Backend)
	}
	if cfg.BufferFrames != 128 {
		t.Errorf("file should beat defaults, got %d", cfg.BufferFrames)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected nested env override, got %s", cfg.Log.Level)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("expected an error for a missing explicit config file")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"format", "format", "u8"},
		{"performance", "performance", "turbo"},
		{"sharing", "sharing", "borrowed"},
		{"buffer", "buffer_frames", 0},
		{"pitch", "pitch", -1.0},
		{"step", "pitch_step", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("HOME", t.TempDir())
			if _, err := Load("", map[string]any{tt.key: tt.val}); err == nil {
				t.Errorf("expected %s=%v to be rejected", tt.key, tt.val)
			}
		})
	}
}

func TestPlaybackOptions(t *testing.T) {
	cfg := Config{
		Backend:      "null",
		Format:       "f32",
		BufferFrames: 480,
		Performance:  "power-saving",
		Sharing:      "exclusive",
		Pitch:        1,
		PitchStep:    0.1,
		StartPaused:  true,
	}

	opts, err := cfg.PlaybackOptions(nil)
	if err != nil {
		t.Fatalf("PlaybackOptions failed: %v", err)
	}
	if opts.BackendName != "null" || opts.Format != output.FormatFloat32 || opts.BufferCapacityFrames != 480 {
		t.Errorf("unexpected stream options %+v", opts)
	}
	if opts.Performance != output.PerformancePowerSaving || opts.Sharing != output.SharingExclusive || !opts.StartPaused {
		t.Errorf("unexpected modes %+v", opts)
	}
}
