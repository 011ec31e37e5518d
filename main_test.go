// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"path/filepath"
	"testing"

	"github.com/marketwire/marketwire-tui/internal/auth"
	"github.com/marketwire/marketwire-tui/internal/config"
	"github.com/marketwire/marketwire-tui/internal/settings"
)

func testStore(t *testing.T, token string) *settings.Store {
	t.Helper()
	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.toml"))
	if err != nil {
		t.Fatalf("open settings: %v", err)
	}
	if token != "" {
		if err := store.SetAuthToken(token); err != nil {
			t.Fatalf("set auth token: %v", err)
		}
	}
	return store
}

func TestBuildTokenProvider_EndpointWinsOverStoredToken(t *testing.T) {
	cfg := config.Default()
	cfg.API.AuthURL = "https://id.example.com/token"
	store := testStore(t, "stored-tok")

	// A stored token cannot answer a 401 with a fresh one; the configured
	// endpoint must win even when a token is persisted.
	if _, ok := buildTokenProvider(cfg, store).(*auth.Remote); !ok {
		t.Error("configured token endpoint should take precedence over stored token")
	}
}

func TestBuildTokenProvider_StoredTokenWithoutEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.API.AuthURL = ""
	store := testStore(t, "stored-tok")

	p := buildTokenProvider(cfg, store)
	static, ok := p.(*auth.Static)
	if !ok {
		t.Fatalf("provider = %T, want *auth.Static", p)
	}
	tok, err := static.Token(t.Context())
	if err != nil || tok != "stored-tok" {
		t.Errorf("token = %q, %v", tok, err)
	}
}

func TestBuildTokenProvider_EnvTokenWithoutEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.API.AuthURL = ""
	t.Setenv("MARKETWIRE_TOKEN", "env-tok")
	store := testStore(t, "stored-tok")

	static, ok := buildTokenProvider(cfg, store).(*auth.Static)
	if !ok {
		t.Fatal("expected static provider")
	}
	tok, _ := static.Token(t.Context())
	if tok != "env-tok" {
		t.Errorf("token = %q, env override should beat the stored token", tok)
	}
}
