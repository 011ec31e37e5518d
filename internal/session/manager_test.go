// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/marketwire/marketwire-tui/internal/api"
	"github.com/marketwire/marketwire-tui/internal/auth"
)

func newManager(t *testing.T, handler http.HandlerFunc) *Manager {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := api.NewClient(srv.URL, "", auth.NewStatic("tok"), api.WithHTTPClient(srv.Client()))
	return NewManager(client, "u1")
}

func TestSession_LazyCreationIsStable(t *testing.T) {
	m := newManager(t, nil)

	first := m.Session("art-1")
	second := m.Session("art-1")
	if first != second {
		t.Error("same article should return the same session")
	}
	if first.SessionID != "" {
		t.Errorf("session id = %q, the server issues ids, not the client", first.SessionID)
	}
	if first.ArticleID != "art-1" || first.UserID != "u1" {
		t.Errorf("session = %+v", first)
	}

	other := m.Session("art-2")
	if other == first {
		t.Error("different articles must not share sessions")
	}
	if m.ActiveCount() != 2 {
		t.Errorf("active = %d, want 2", m.ActiveCount())
	}
}

// startCounter serves /api/chat/start with sequential session ids and
// accepts message posts.
func startCounter(starts *int32, messages *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/chat/start":
			n := atomic.AddInt32(starts, 1)
			fmt.Fprintf(w, `{"session_id": "srv-%d"}`, n)
		case strings.HasSuffix(r.URL.Path, "/message"):
			atomic.AddInt32(messages, 1)
			fmt.Fprint(w, `{}`)
		default:
			http.NotFound(w, r)
		}
	}
}

func TestEnsureStarted_ServerIssuesSessionID(t *testing.T) {
	var starts, messages int32
	m := newManager(t, startCounter(&starts, &messages))

	id, err := m.EnsureStarted(context.Background(), "art-1")
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if id != "srv-1" {
		t.Errorf("id = %q, want srv-1", id)
	}
	if m.Session("art-1").SessionID != "srv-1" {
		t.Error("server id not stored on the session")
	}

	// A second call reuses the live session instead of starting another.
	again, err := m.EnsureStarted(context.Background(), "art-1")
	if err != nil || again != "srv-1" {
		t.Errorf("second start = %q, %v", again, err)
	}
	if atomic.LoadInt32(&starts) != 1 {
		t.Errorf("starts = %d, want 1", starts)
	}
}

func TestSendMessage_StartsSessionOnFirstSend(t *testing.T) {
	var starts, messages int32
	m := newManager(t, startCounter(&starts, &messages))
	ctx := context.Background()

	if err := m.SendMessage(ctx, "art-1", "first question"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := m.SendMessage(ctx, "art-1", "follow-up"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if atomic.LoadInt32(&starts) != 1 {
		t.Errorf("starts = %d, one article gets one server session", starts)
	}
	if atomic.LoadInt32(&messages) != 2 {
		t.Errorf("messages = %d, want 2", messages)
	}
}

func TestEndSession_BumpsGeneration(t *testing.T) {
	var starts, messages int32
	m := newManager(t, startCounter(&starts, &messages))

	first, err := m.EnsureStarted(context.Background(), "art-1")
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	gen := m.Generation("art-1")

	m.EndSession("art-1")

	if m.IsCurrent("art-1", gen) {
		t.Error("old generation should be stale after EndSession")
	}
	if _, ok := m.Peek("art-1"); ok {
		t.Error("session should be gone")
	}

	// The next send starts a fresh server session.
	fresh, err := m.EnsureStarted(context.Background(), "art-1")
	if err != nil {
		t.Fatalf("EnsureStarted after end: %v", err)
	}
	if fresh == first {
		t.Error("recreated session reused the old server id")
	}
}

func TestBeginAnalysis_SingleFlight(t *testing.T) {
	m := newManager(t, nil)

	release, ok := m.BeginAnalysis("art-1", "gpt-4o")
	if !ok {
		t.Fatal("first acquisition should succeed")
	}

	if _, ok := m.BeginAnalysis("art-1", "gpt-4o"); ok {
		t.Error("duplicate article+model must be rejected while in flight")
	}

	// A different model for the same article is a distinct request.
	release2, ok := m.BeginAnalysis("art-1", "deepseek-v3")
	if !ok {
		t.Error("different model should not be blocked")
	}
	release2()

	release()
	if _, ok := m.BeginAnalysis("art-1", "gpt-4o"); !ok {
		t.Error("slot should be free after release")
	}
}

func TestBeginAnalysis_ReleaseIsIdempotent(t *testing.T) {
	m := newManager(t, nil)

	release, _ := m.BeginAnalysis("art-1", "m")
	release()
	release() // second call is a no-op

	if _, ok := m.BeginAnalysis("art-1", "m"); !ok {
		t.Error("slot should be acquirable")
	}
}

func TestBeginAnalysis_ConcurrentAcquisition(t *testing.T) {
	m := newManager(t, nil)

	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.BeginAnalysis("art-1", "m"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
}

func TestLoadHistory_ReplacesLocalMessages(t *testing.T) {
	m := newManager(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"messages": [
			{"id": "m1", "role": "user", "content": "q"},
			{"id": "m2", "role": "assistant", "content": "a"}
		]}`)
	})

	sess, err := m.LoadHistory(context.Background(), "art-1")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if sess.MessageCount() != 2 {
		t.Errorf("messages = %d, want 2", sess.MessageCount())
	}
	if sess.Messages[1].Content != "a" {
		t.Errorf("content = %q", sess.Messages[1].Content)
	}
}
