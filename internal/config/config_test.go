// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DefaultModel == "" {
		t.Error("default model should not be empty")
	}
	if cfg.Chat.ReconnectBaseMs != 3000 {
		t.Errorf("reconnect base = %d, want 3000", cfg.Chat.ReconnectBaseMs)
	}
	if cfg.Market.PollIntervalSecs != 5 {
		t.Errorf("poll interval = %d, want 5", cfg.Market.PollIntervalSecs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.API.BaseURL != Default().API.BaseURL {
		t.Errorf("base URL = %q", cfg.API.BaseURL)
	}
}

func TestLoadFromPath_PartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
default_model = "claude-sonnet"

[chat]
typing_idle_ms = 500
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.DefaultModel != "claude-sonnet" {
		t.Errorf("model = %q", cfg.DefaultModel)
	}
	if cfg.Chat.TypingIdleMs != 500 {
		t.Errorf("typing idle = %d, want 500", cfg.Chat.TypingIdleMs)
	}
	// Unspecified fields take defaults.
	if cfg.API.WSURL == "" {
		t.Error("ws_url should be filled from defaults")
	}
	if cfg.Chat.ReconnectBaseMs != 3000 {
		t.Errorf("reconnect base = %d, want default 3000", cfg.Chat.ReconnectBaseMs)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Chat.TypingIdleMs = 10
	cfg.Market.PollIntervalSecs = 0
	cfg.UI.Theme = "solarized"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	verrs, ok := err.(ValidateErrors)
	if !ok {
		t.Fatalf("err type = %T", err)
	}
	if len(verrs) != 3 {
		t.Errorf("error count = %d, want 3: %v", len(verrs), verrs)
	}
	if !strings.Contains(err.Error(), "ui.theme") {
		t.Errorf("error should mention ui.theme: %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("MARKETWIRE_API_URL", "http://localhost:8080")
	t.Setenv("MARKETWIRE_MODEL", "gpt-4o-mini")
	t.Setenv("MARKETWIRE_POLL_SECS", "10")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.API.BaseURL != "http://localhost:8080" {
		t.Errorf("base URL = %q", cfg.API.BaseURL)
	}
	if cfg.DefaultModel != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.DefaultModel)
	}
	if cfg.Market.PollIntervalSecs != 10 {
		t.Errorf("poll interval = %d", cfg.Market.PollIntervalSecs)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultModel = "deepseek-v3"
	cfg.UI.Theme = "light"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("perm = %o, want 0600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.DefaultModel != "deepseek-v3" {
		t.Errorf("model = %q", loaded.DefaultModel)
	}
	if loaded.UI.Theme != "light" {
		t.Errorf("theme = %q", loaded.UI.Theme)
	}
}
