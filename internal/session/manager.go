// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks per-article chat sessions and guards analysis
// generation against duplicate and stale work.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/marketwire/marketwire-tui/internal/api"
	"github.com/marketwire/marketwire-tui/internal/model"
)

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns the article-to-session mapping. Sessions are created lazily on
// first use and torn down by an explicit end. All methods are safe for
// concurrent use.
type Manager struct {
	client *api.Client
	userID string

	mu         sync.Mutex
	sessions   map[string]*model.ChatSession
	inflight   map[string]struct{}
	generation map[string]uint64

	// startMu serializes server session creation so one article never ends
	// up with two server-side sessions.
	startMu sync.Mutex
}

// NewManager creates a session manager.
func NewManager(client *api.Client, userID string) *Manager {
	return &Manager{
		client:     client,
		userID:     userID,
		sessions:   make(map[string]*model.ChatSession),
		inflight:   make(map[string]struct{}),
		generation: make(map[string]uint64),
	}
}

// Session returns the local chat session record for an article, creating it
// lazily. The session id stays empty until the server issues one on the
// first message; see EnsureStarted.
func (m *Manager) Session(articleID string) *model.ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[articleID]; ok {
		return sess
	}
	sess := &model.ChatSession{
		ArticleID: articleID,
		UserID:    m.userID,
	}
	m.sessions[articleID] = sess
	return sess
}

// EnsureStarted returns the server-issued session id for an article, asking
// the server to create the session on first use.
func (m *Manager) EnsureStarted(ctx context.Context, articleID string) (string, error) {
	sess := m.Session(articleID)

	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.mu.Lock()
	id := sess.SessionID
	m.mu.Unlock()
	if id != "" {
		return id, nil
	}

	id, err := m.client.StartChat(ctx, articleID, m.userID)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	sess.SessionID = id
	sess.CreatedAt = time.Now()
	m.mu.Unlock()
	return id, nil
}

// SendMessage delivers one user message, starting the server session on the
// first send for an article.
func (m *Manager) SendMessage(ctx context.Context, articleID, content string) error {
	id, err := m.EnsureStarted(ctx, articleID)
	if err != nil {
		return err
	}
	return m.client.SendChatMessage(ctx, id, content)
}

// Peek returns the session for an article without creating one.
func (m *Manager) Peek(articleID string) (*model.ChatSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[articleID]
	return sess, ok
}

// EndSession tears the session down and bumps the article's generation so
// any still-running work for the old session is discarded on arrival.
func (m *Manager) EndSession(articleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, articleID)
	m.generation[articleID]++
}

// ActiveCount returns the number of live sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// =============================================================================
// HISTORY
// =============================================================================

// LoadHistory fetches server-held history into the article's session,
// replacing any local messages. The server is the source of truth.
func (m *Manager) LoadHistory(ctx context.Context, articleID string) (*model.ChatSession, error) {
	messages, err := m.client.ChatHistory(ctx, articleID)
	if err != nil {
		return nil, err
	}

	sess := m.Session(articleID)
	m.mu.Lock()
	sess.Messages = messages
	m.mu.Unlock()
	return sess, nil
}

// =============================================================================
// GENERATION GUARDS
// =============================================================================

// Generation returns the current generation counter for an article. Results
// computed under an older generation must be dropped.
func (m *Manager) Generation(articleID string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation[articleID]
}

// IsCurrent reports whether gen is still the article's live generation.
func (m *Manager) IsCurrent(articleID string, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation[articleID] == gen
}

// BeginAnalysis acquires the single-flight slot for one article+model pair.
// It returns false if an identical request is already in flight; callers
// must not issue a duplicate. On success, the returned release function
// frees the slot.
func (m *Manager) BeginAnalysis(articleID, modelName string) (release func(), ok bool) {
	key := articleID + "\x00" + modelName

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inflight[key]; busy {
		return nil, false
	}
	m.inflight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.inflight, key)
			m.mu.Unlock()
		})
	}, true
}
