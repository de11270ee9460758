// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for the lumen AI backend.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.lumen/config.toml
//   - ~/.lumen/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/lumen/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete lumen backend configuration.
type Config struct {
	// AI holds inference server settings.
	AI AIConfig `toml:"ai" json:"ai"`

	// Bridge holds the loopback UI bridge settings.
	Bridge BridgeConfig `toml:"bridge" json:"bridge"`

	// Logging holds daily log file settings.
	Logging LoggingConfig `toml:"logging" json:"logging"`

	// DataDir is the directory for persisted state (model status, settings,
	// history, logs). Empty means ~/.lumen.
	DataDir string `toml:"data_dir" json:"data_dir"`
}

// AIConfig contains inference server (Ollama) configuration.
type AIConfig struct {
	// BaseURL is the Ollama API base URL.
	// Uses explicit IPv4 address instead of localhost to avoid IPv6
	// resolution issues on Windows.
	BaseURL string `toml:"base_url" json:"base_url"`

	// DefaultModel is the model used when the status store has none.
	DefaultModel string `toml:"default_model" json:"default_model"`

	// TimeoutSecs bounds every inference request. Model loads on slow disks
	// can take minutes, hence the large default (600s).
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// BridgeConfig contains the loopback HTTP bridge configuration.
type BridgeConfig struct {
	// Addr is the listen address. Must stay on the loopback interface.
	Addr string `toml:"addr" json:"addr"`
}

// LoggingConfig contains daily log file configuration.
type LoggingConfig struct {
	// RetentionDays is how long daily log files are kept.
	RetentionDays int `toml:"retention_days" json:"retention_days"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			BaseURL:      "http://127.0.0.1:11434",
			DefaultModel: "qwen2.5:7b-instruct",
			TimeoutSecs:  600,
		},
		Bridge: BridgeConfig{
			Addr: "127.0.0.1:18423",
		},
		Logging: LoggingConfig{
			RetentionDays: 90,
		},
	}
}

// Timeout returns the inference request timeout as a duration.
func (c *AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// DefaultDataDir returns the lumen data directory path (~/.lumen).
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".lumen"), nil
}

// ResolveDataDir returns the configured data directory, falling back to the
// default and creating it if missing.
func (c *Config) ResolveDataDir() (string, error) {
	dir := c.DataDir
	if dir == "" {
		d, err := DefaultDataDir()
		if err != nil {
			return "", err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

func configPathTOML() (string, error) {
	dir, err := DefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func configPathJSON() (string, error) {
	dir, err := DefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOAD
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	if path, err := configPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	if path, err := configPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON config from %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON config from %s: %w", path, err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML config from %s: %w", path, err)
		}
	}

	cfg.fillDefaults()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.AI.BaseURL == "" {
		c.AI.BaseURL = defaults.AI.BaseURL
	}
	if c.AI.DefaultModel == "" {
		c.AI.DefaultModel = defaults.AI.DefaultModel
	}
	if c.AI.TimeoutSecs == 0 {
		c.AI.TimeoutSecs = defaults.AI.TimeoutSecs
	}
	if c.Bridge.Addr == "" {
		c.Bridge.Addr = defaults.Bridge.Addr
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = defaults.Logging.RetentionDays
	}
}

// =============================================================================
// SAVE
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := configPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# lumen configuration file\n")
	sb.WriteString("# Generated by lumen - edit with care\n\n")

	encoder := toml.NewEncoder(&sb)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.AI.BaseURL != "" {
		u, err := url.Parse(c.AI.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ValidationError{
				Field:   "ai.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.AI.BaseURL),
			}
		}
	}

	if c.AI.TimeoutSecs < 0 {
		return ValidationError{
			Field:   "ai.timeout_secs",
			Message: "must be non-negative",
		}
	}

	if c.Logging.RetentionDays < 0 {
		return ValidationError{
			Field:   "logging.retention_days",
			Message: "must be non-negative",
		}
	}

	// The bridge carries no authentication; it must never leave loopback.
	if addr := c.Bridge.Addr; addr != "" {
		host := addr
		if i := strings.LastIndex(addr, ":"); i >= 0 {
			host = addr[:i]
		}
		if host != "127.0.0.1" && host != "localhost" && host != "::1" && host != "[::1]" {
			return ValidationError{
				Field:   "bridge.addr",
				Message: fmt.Sprintf("must bind a loopback address, got '%s'", addr),
			}
		}
	}

	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - OLLAMA_BASE_URL: overrides ai.base_url
//   - LUMEN_AI_MODEL: overrides ai.default_model
//   - LUMEN_DATA_DIR: overrides data_dir
//   - LUMEN_BRIDGE_ADDR: overrides bridge.addr
func (c *Config) ApplyEnvOverrides() {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		c.AI.BaseURL = baseURL
	}
	if model := os.Getenv("LUMEN_AI_MODEL"); model != "" {
		c.AI.DefaultModel = model
	}
	if dir := os.Getenv("LUMEN_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if addr := os.Getenv("LUMEN_BRIDGE_ADDR"); addr != "" {
		c.Bridge.Addr = addr
	}
}
