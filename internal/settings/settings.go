// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings provides persistent per-user preferences.
//
// Preferences survive restarts and are shared across concurrently running
// instances: every mutation is written to disk immediately and a file watcher
// notifies other instances of external changes.
package settings

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/marketwire/marketwire-tui/internal/util"
)

// =============================================================================
// KEYS
// =============================================================================

// Well-known preference keys.
const (
	KeyDefaultModel      = "default_model"
	KeyTheme             = "theme"
	KeyPreferredLanguage = "preferred_language"
	KeyHasInterests      = "has_interests"
	KeyAuthToken         = "auth_token"
)

// =============================================================================
// STORE
// =============================================================================

// persisted is the on-disk shape of the store.
type persisted struct {
	DefaultModel      string `toml:"default_model,omitempty"`
	Theme             string `toml:"theme,omitempty"`
	PreferredLanguage string `toml:"preferred_language,omitempty"`
	HasInterests      bool   `toml:"has_interests,omitempty"`
	AuthToken         string `toml:"auth_token,omitempty"`
}

// Observer is called after a preference changes. The key identifies which
// preference changed; the value is its new string form.
type Observer func(key, value string)

// Store is a concurrency-safe persistent preference store.
type Store struct {
	mu        sync.RWMutex
	path      string
	data      persisted
	observers []Observer
}

// Open loads the store from path, creating an empty store if the file does
// not exist.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &s.data); err != nil {
			return nil, fmt.Errorf("failed to decode settings file: %w", err)
		}
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Subscribe registers an observer invoked on every change, including changes
// picked up from other instances by the watcher.
func (s *Store) Subscribe(fn Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Store) notify(key, value string) {
	s.mu.RLock()
	obs := make([]Observer, len(s.observers))
	copy(obs, s.observers)
	s.mu.RUnlock()
	for _, fn := range obs {
		fn(key, value)
	}
}

// flush persists the current state.
// SECURITY: The settings file may hold a fallback auth token, so it is
// written 0600.
func (s *Store) flush() error {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(s.data); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := util.AtomicWriteFile(s.path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// =============================================================================
// TYPED ACCESSORS
// =============================================================================

// DefaultModel returns the preferred analysis model, or fallback if unset.
func (s *Store) DefaultModel(fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.DefaultModel == "" {
		return fallback
	}
	return s.data.DefaultModel
}

// SetDefaultModel stores the preferred analysis model.
func (s *Store) SetDefaultModel(model string) error {
	s.mu.Lock()
	s.data.DefaultModel = model
	err := s.flush()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(KeyDefaultModel, model)
	return nil
}

// Theme returns the stored theme, or fallback if unset.
func (s *Store) Theme(fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.Theme == "" {
		return fallback
	}
	return s.data.Theme
}

// SetTheme stores the UI theme.
func (s *Store) SetTheme(theme string) error {
	s.mu.Lock()
	s.data.Theme = theme
	err := s.flush()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(KeyTheme, theme)
	return nil
}

// PreferredLanguage returns the stored language tag, or fallback if unset.
func (s *Store) PreferredLanguage(fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.PreferredLanguage == "" {
		return fallback
	}
	return s.data.PreferredLanguage
}

// SetPreferredLanguage stores the language tag (BCP 47, e.g. "es", "th").
func (s *Store) SetPreferredLanguage(lang string) error {
	s.mu.Lock()
	s.data.PreferredLanguage = lang
	err := s.flush()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(KeyPreferredLanguage, lang)
	return nil
}

// HasInterests reports whether the user completed interest onboarding.
func (s *Store) HasInterests() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.HasInterests
}

// SetHasInterests records interest onboarding completion.
func (s *Store) SetHasInterests(v bool) error {
	s.mu.Lock()
	s.data.HasInterests = v
	err := s.flush()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(KeyHasInterests, fmt.Sprintf("%t", v))
	return nil
}

// AuthToken returns the stored fallback auth token, which may be empty.
// The live token provider is authoritative; this value is only consulted
// when no provider is configured.
func (s *Store) AuthToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.AuthToken
}

// SetAuthToken stores the fallback auth token. An empty token clears it.
func (s *Store) SetAuthToken(token string) error {
	s.mu.Lock()
	s.data.AuthToken = token
	err := s.flush()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(KeyAuthToken, token)
	return nil
}

// =============================================================================
// EXTERNAL RELOAD
// =============================================================================

// Reload re-reads the backing file and notifies observers of any keys whose
// values changed. Used by the watcher when another instance writes the file.
func (s *Store) Reload() error {
	var fresh persisted
	if _, err := toml.DecodeFile(s.path, &fresh); err != nil {
		return fmt.Errorf("failed to reload settings: %w", err)
	}

	s.mu.Lock()
	old := s.data
	s.data = fresh
	s.mu.Unlock()

	if old.DefaultModel != fresh.DefaultModel {
		s.notify(KeyDefaultModel, fresh.DefaultModel)
	}
	if old.Theme != fresh.Theme {
		s.notify(KeyTheme, fresh.Theme)
	}
	if old.PreferredLanguage != fresh.PreferredLanguage {
		s.notify(KeyPreferredLanguage, fresh.PreferredLanguage)
	}
	if old.HasInterests != fresh.HasInterests {
		s.notify(KeyHasInterests, fmt.Sprintf("%t", fresh.HasInterests))
	}
	if old.AuthToken != fresh.AuthToken {
		s.notify(KeyAuthToken, fresh.AuthToken)
	}
	return nil
}
