// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the
// MarketWire terminal client.
//
// Configuration is read from ~/.marketwire/config.toml with built-in
// defaults and environment variable overrides applied last.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/marketwire/marketwire-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete client configuration.
type Config struct {
	// General settings
	Version      string `toml:"version"`
	DefaultModel string `toml:"default_model"`
	Language     string `toml:"language"`

	// API endpoints
	API APIConfig `toml:"api"`

	// Chat behaviour
	Chat ChatConfig `toml:"chat"`

	// Market data
	Market MarketConfig `toml:"market"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// APIConfig contains platform endpoint configuration.
type APIConfig struct {
	// BaseURL is the REST API base, e.g. https://api.marketwire.io
	BaseURL string `toml:"base_url"`
	// LegacyBaseURL is the non-optimized endpoint used as the one-shot
	// fallback when the optimized endpoint answers 404 or 500.
	LegacyBaseURL string `toml:"legacy_base_url"`
	// WSURL is the chat WebSocket endpoint, e.g. wss://api.marketwire.io/ws
	WSURL string `toml:"ws_url"`
	// AuthURL is the identity provider token endpoint.
	AuthURL string `toml:"auth_url"`
	// TimeoutSecs is the request timeout for non-streaming calls.
	TimeoutSecs int `toml:"timeout_secs"`
}

// ChatConfig contains chat connection behaviour.
type ChatConfig struct {
	// TypingIdleMs is how long after the last keystroke the typing-stop
	// signal fires.
	TypingIdleMs int `toml:"typing_idle_ms"`
	// ReconnectBaseMs is the base delay before the first reconnect attempt.
	ReconnectBaseMs int `toml:"reconnect_base_ms"`
	// ReconnectMaxAttempts bounds reconnection; 0 disables reconnect.
	ReconnectMaxAttempts int `toml:"reconnect_max_attempts"`
	// AutoGenerate triggers analysis generation on article open when no
	// analysis exists yet.
	AutoGenerate bool `toml:"auto_generate"`
}

// MarketConfig contains market-data polling configuration.
type MarketConfig struct {
	// PollIntervalSecs is the real-time quote poll interval.
	PollIntervalSecs int `toml:"poll_interval_secs"`
	// Tickers are the symbols shown in the quote strip.
	Tickers []string `toml:"tickers"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// ShowSentiment displays sentiment badges next to assistant messages.
	ShowSentiment bool `toml:"show_sentiment"`
	// CompactMode uses a more compact layout.
	CompactMode bool `toml:"compact_mode"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:      "1.0.0",
		DefaultModel: "gpt-4o",
		Language:     "en",

		API: APIConfig{
			BaseURL:       "https://api.marketwire.io",
			LegacyBaseURL: "https://api.marketwire.io/legacy",
			WSURL:         "wss://api.marketwire.io/ws",
			AuthURL:       "https://auth.marketwire.io/token",
			TimeoutSecs:   30,
		},

		Chat: ChatConfig{
			TypingIdleMs:         1000,
			ReconnectBaseMs:      3000,
			ReconnectMaxAttempts: 5,
			AutoGenerate:         true,
		},

		Market: MarketConfig{
			PollIntervalSecs: 5,
			Tickers:          []string{"SPY", "QQQ", "DIA"},
		},

		UI: UIConfig{
			Theme:         "dark",
			ShowSentiment: true,
			CompactMode:   false,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the marketwire configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".marketwire"), nil
}

// Path returns the path to the TOML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load loads configuration from the config file, applies environment
// overrides, fills defaults, and validates.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path. A missing file
// is not an error; defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save saves the configuration to the given path.
// SECURITY: Config files are written 0600 (owner read/write only).
func Save(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# marketwire configuration file\n")
	sb.WriteString("# Generated by marketwire - edit with care\n\n")

	enc := toml.NewEncoder(&sb)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fillDefaults fills in any missing values with defaults.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.DefaultModel == "" {
		c.DefaultModel = defaults.DefaultModel
	}
	if c.Language == "" {
		c.Language = defaults.Language
	}

	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.API.LegacyBaseURL == "" {
		c.API.LegacyBaseURL = defaults.API.LegacyBaseURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = defaults.API.WSURL
	}
	if c.API.AuthURL == "" {
		c.API.AuthURL = defaults.API.AuthURL
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = defaults.API.TimeoutSecs
	}

	if c.Chat.TypingIdleMs == 0 {
		c.Chat.TypingIdleMs = defaults.Chat.TypingIdleMs
	}
	if c.Chat.ReconnectBaseMs == 0 {
		c.Chat.ReconnectBaseMs = defaults.Chat.ReconnectBaseMs
	}

	if c.Market.PollIntervalSecs == 0 {
		c.Market.PollIntervalSecs = defaults.Market.PollIntervalSecs
	}
	if len(c.Market.Tickers) == 0 {
		c.Market.Tickers = defaults.Market.Tickers
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
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

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	for _, ep := range []struct {
		field string
		value string
	}{
		{"api.base_url", c.API.BaseURL},
		{"api.legacy_base_url", c.API.LegacyBaseURL},
		{"api.ws_url", c.API.WSURL},
		{"api.auth_url", c.API.AuthURL},
	} {
		if ep.value == "" {
			continue
		}
		if _, err := url.Parse(ep.value); err != nil {
			errs = append(errs, ValidationError{
				Field:   ep.field,
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		}
	}

	if c.API.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "api.timeout_secs",
			Message: "must be non-negative",
		})
	}

	if c.Chat.TypingIdleMs < 100 {
		errs = append(errs, ValidationError{
			Field:   "chat.typing_idle_ms",
			Message: fmt.Sprintf("must be at least 100ms, got %d", c.Chat.TypingIdleMs),
		})
	}
	if c.Chat.ReconnectBaseMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.reconnect_base_ms",
			Message: "must be non-negative",
		})
	}
	if c.Chat.ReconnectMaxAttempts < 0 || c.Chat.ReconnectMaxAttempts > 100 {
		errs = append(errs, ValidationError{
			Field:   "chat.reconnect_max_attempts",
			Message: fmt.Sprintf("must be 0-100, got %d", c.Chat.ReconnectMaxAttempts),
		})
	}

	if c.Market.PollIntervalSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "market.poll_interval_secs",
			Message: fmt.Sprintf("must be at least 1 second, got %d", c.Market.PollIntervalSecs),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - MARKETWIRE_API_URL: overrides api.base_url
//   - MARKETWIRE_WS_URL: overrides api.ws_url
//   - MARKETWIRE_AUTH_URL: overrides api.auth_url
//   - MARKETWIRE_MODEL: overrides default_model
//   - MARKETWIRE_LANGUAGE: overrides language
//   - MARKETWIRE_THEME: overrides ui.theme
//   - MARKETWIRE_POLL_SECS: overrides market.poll_interval_secs
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("MARKETWIRE_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("MARKETWIRE_WS_URL"); v != "" {
		c.API.WSURL = v
	}
	if v := os.Getenv("MARKETWIRE_AUTH_URL"); v != "" {
		c.API.AuthURL = v
	}
	if v := os.Getenv("MARKETWIRE_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("MARKETWIRE_LANGUAGE"); v != "" {
		c.Language = v
	}
	if v := os.Getenv("MARKETWIRE_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("MARKETWIRE_POLL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Market.PollIntervalSecs = n
		}
	}
}
