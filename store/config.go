package store

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the declarative Store configuration: a DSN, whether to run the
// bootstrap script, and a logger level. Loaded from YAML.
type Config struct {
	DSN       string `yaml:"dsn"`
	Bootstrap bool   `yaml:"bootstrap"`
	LogLevel  string `yaml:"log_level"`
}

// DefaultConfig returns a Config for an ephemeral in-memory store with
// bootstrap enabled, the shape the store package's tests open against.
func DefaultConfig() Config {
	return Config{DSN: ":memory:", Bootstrap: true, LogLevel: "info"}
}

// Load reads and parses a YAML config file at path, overlaying it onto c
// (typically DefaultConfig()).
func (c Config) Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("store: load config: %w", err)
	}
	cfg := c
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("store: parse config: %w", err)
	}
	return cfg, nil
}

// level parses LogLevel into a slog.Level, defaulting to Info for an empty
// or unrecognised value.
func (c Config) level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
