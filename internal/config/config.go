package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all revisit configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Nudges   Nudges         `yaml:"nudges"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LLMConfig struct {
	Provider     string `yaml:"provider"` // "anthropic", "ollama", or "" (disabled)
	Model        string `yaml:"model"`
	OllamaURL    string `yaml:"ollama_url"`
	OllamaModel  string `yaml:"ollama_model"`
	AnthropicKey string `yaml:"anthropic_key"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Nudges is the per-tick policy snapshot. It is passed into the engine as a
// value so a tick is a pure function of (now, settings, data); nothing in
// the engine reads configuration ambiently.
type Nudges struct {
	ScheduleIntervalHours int `yaml:"schedule_interval_hours"`
	MaxPerDay             int `yaml:"max_per_day"`

	// Global switch and pause for the spaced-resurfacing queue.
	ResurfacingEnabled bool `yaml:"resurfacing_enabled"`
	ResurfacingPaused  bool `yaml:"resurfacing_paused"`

	EnableResurface        bool `yaml:"enable_resurface"`
	EnableStaleInbox       bool `yaml:"enable_stale_inbox"`
	EnableConnectionPrompt bool `yaml:"enable_connection_prompt"`
	EnableStreak           bool `yaml:"enable_streak"`
	EnableContinueCourse   bool `yaml:"enable_continue_course"`
	EnableSmart            bool `yaml:"enable_smart"`
	EnableDigest           bool `yaml:"enable_digest"`
	EnableCheckIn          bool `yaml:"enable_check_in"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37740,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider:    "",
			Model:       "claude-haiku-4-5-20251001",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "llama3.2",
		},
		Nudges: Nudges{
			ScheduleIntervalHours:  4,
			MaxPerDay:              3,
			ResurfacingEnabled:     true,
			EnableResurface:        true,
			EnableStaleInbox:       true,
			EnableConnectionPrompt: true,
			EnableStreak:           true,
			EnableContinueCourse:   true,
			EnableSmart:            true,
			EnableDigest:           true,
			EnableCheckIn:          true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// DefaultPath returns the default config file location: ~/.revisit/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".revisit", "config.yaml"), nil
}

// Load reads a YAML config file on top of the defaults. A missing file is
// not an error — the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Nudges.ScheduleIntervalHours < 1 {
		return fmt.Errorf("nudges.schedule_interval_hours must be >= 1, got %d", c.Nudges.ScheduleIntervalHours)
	}
	if c.Nudges.MaxPerDay < 0 {
		return fmt.Errorf("nudges.max_per_day must be >= 0, got %d", c.Nudges.MaxPerDay)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
