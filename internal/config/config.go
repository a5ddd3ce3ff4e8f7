// Package config loads the app configuration: defaults first, then an
// optional YAML file merged over them.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hperssn/breathe/internal/domain"
)

type Config struct {
	Listen   string        `yaml:"listen" mapstructure:"listen"`
	LogLevel string        `yaml:"log_level" mapstructure:"log_level"`
	Session  SessionConfig `yaml:"session" mapstructure:"session"`
	MIDI     MIDIConfig    `yaml:"midi" mapstructure:"midi"`
}

// SessionConfig is the on-disk shape of the default session settings.
type SessionConfig struct {
	BreathsPerRound int `yaml:"breaths_per_round" mapstructure:"breaths_per_round"`
	TempoMs         int `yaml:"tempo_ms" mapstructure:"tempo_ms"`
	TotalRounds     int `yaml:"total_rounds" mapstructure:"total_rounds"`
}

// MIDIConfig selects the cue output. With Enabled false (or when the port
// cannot be opened) cues fall back to the logger.
type MIDIConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Port    string `yaml:"port" mapstructure:"port"`
}

func DefaultConfig() *Config {
	s := domain.DefaultSettings()
	return &Config{
		Listen:   ":8080",
		LogLevel: "info",
		Session: SessionConfig{
			BreathsPerRound: s.BreathsPerRound,
			TempoMs:         s.TempoMs,
			TotalRounds:     s.TotalRounds,
		},
	}
}

// DefaultPath is where Load looks when no explicit path is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "breathe.yaml"
	}
	return filepath.Join(home, ".breathe", "config.yaml")
}

// Load reads the config at path, or the default path when path is empty.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Settings().Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config as YAML, creating parent directories as needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Settings converts the configured defaults into session settings.
func (c *Config) Settings() domain.Settings {
	return domain.Settings{
		BreathsPerRound: c.Session.BreathsPerRound,
		TempoMs:         c.Session.TempoMs,
		TotalRounds:     c.Session.TotalRounds,
	}
}

// Level parses the configured log level, defaulting to Info.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
