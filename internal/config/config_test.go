package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Playback.MinDelay != 50*time.Millisecond || cfg.Playback.Jitter != 100*time.Millisecond {
		t.Errorf("unexpected playback defaults: %+v", cfg.Playback)
	}
	if cfg.Render.Format != "terminal" || cfg.Render.Wrap != 120 || cfg.Render.ChartDir != "charts" {
		t.Errorf("unexpected render defaults: %+v", cfg.Render)
	}
	if cfg.Server.Addr != ":8090" || cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Parser.InvalidSegments {
		t.Errorf("invalid segments should be off by default")
	}
}

func TestLoadConfig_NoDirectoryUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadConfig(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Render.Format != "terminal" {
		t.Errorf("expected defaults, got %+v", cfg.Render)
	}
}

func TestLoadConfig_FileMergesWithDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)

	dir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	data := []byte("playback:\n  min_delay: 5ms\nrender:\n  format: plain\nparser:\n  invalid_segments: true\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Playback.MinDelay != 5*time.Millisecond {
		t.Errorf("expected min_delay 5ms, got %v", cfg.Playback.MinDelay)
	}
	if cfg.Playback.Jitter != 100*time.Millisecond {
		t.Errorf("unset jitter should keep its default, got %v", cfg.Playback.Jitter)
	}
	if cfg.Render.Format != "plain" || cfg.Render.Wrap != 120 {
		t.Errorf("unexpected render config %+v", cfg.Render)
	}
	if !cfg.Parser.InvalidSegments {
		t.Errorf("expected invalid_segments true")
	}
}

func TestLoadConfig_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9999\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("expected addr :9999, got %q", cfg.Server.Addr)
	}

	if _, err := LoadConfig(context.Background(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing explicit config")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("render: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(context.Background(), path); err == nil {
		t.Errorf("expected parse error")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(EnvJitter, "0s")
	t.Setenv(EnvFormat, "json")
	t.Setenv(EnvInvalid, "true")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := LoadConfig(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Playback.Jitter != 0 || cfg.Render.Format != "json" || !cfg.Parser.InvalidSegments || cfg.Logging.Level != "debug" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}
