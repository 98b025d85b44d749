package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Nudges.MaxPerDay != 3 {
		t.Errorf("MaxPerDay = %d, want 3", cfg.Nudges.MaxPerDay)
	}
	if cfg.Nudges.ScheduleIntervalHours != 4 {
		t.Errorf("ScheduleIntervalHours = %d, want 4", cfg.Nudges.ScheduleIntervalHours)
	}
	if !cfg.Nudges.ResurfacingEnabled {
		t.Error("resurfacing should default on")
	}
	if !cfg.Nudges.EnableCheckIn {
		t.Error("check-ins should default on")
	}
	if cfg.LLM.Provider != "" {
		t.Errorf("LLM provider = %q, want disabled by default", cfg.LLM.Provider)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Nudges.MaxPerDay != 3 {
		t.Errorf("MaxPerDay = %d, want default 3", cfg.Nudges.MaxPerDay)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 9999
nudges:
  max_per_day: 5
  enable_streak: false
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Nudges.MaxPerDay != 5 {
		t.Errorf("MaxPerDay = %d, want 5", cfg.Nudges.MaxPerDay)
	}
	if cfg.Nudges.EnableStreak {
		t.Error("enable_streak should be overridden to false")
	}
	// Untouched fields keep their defaults.
	if !cfg.Nudges.EnableResurface {
		t.Error("enable_resurface should stay at its default")
	}
	if cfg.ListenAddr() != "127.0.0.1:9999" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
nudges:
  schedule_interval_hours: 0
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected validation error for zero interval")
	}
}
