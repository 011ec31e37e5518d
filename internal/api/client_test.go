// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/marketwire/marketwire-tui/internal/auth"
	"github.com/marketwire/marketwire-tui/internal/model"
)

const analysisBody = `{
	"llm_analysis": "## Summary\n\nRates held steady.",
	"performance": {"response_time_ms": 420, "from_cache": false, "model": "gpt-4o"}
}`

func newTestClient(t *testing.T, primary, legacy http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(primary)
	cleanup := srv.Close
	legacyURL := ""
	if legacy != nil {
		lsrv := httptest.NewServer(legacy)
		legacyURL = lsrv.URL
		cleanup = func() {
			srv.Close()
			lsrv.Close()
		}
	}
	c := NewClient(srv.URL, legacyURL, auth.NewStatic("tok"), WithHTTPClient(srv.Client()))
	return c, cleanup
}

func TestGenerateAnalysis_StringVariant(t *testing.T) {
	c, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		fmt.Fprint(w, analysisBody)
	}, nil)
	defer cleanup()

	res, err := c.GenerateAnalysis(context.Background(), "art-1", AnalysisRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("GenerateAnalysis: %v", err)
	}
	if res.Kind != model.AnalysisText {
		t.Errorf("kind = %q", res.Kind)
	}
	if res.Content == "" {
		t.Error("content should not be empty")
	}
	if res.Performance.Model != "gpt-4o" {
		t.Errorf("model = %q", res.Performance.Model)
	}
}

func TestGenerateAnalysis_ObjectAndAgentVariants(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantKind model.AnalysisKind
	}{
		{
			"object",
			`{"llm_analysis": {"content": "analysis text"}, "performance": {"model": "m"}}`,
			model.AnalysisText,
		},
		{
			"agents",
			`{"llm_analysis": [{"agent": "bull", "content": "up"}, {"agent": "bear", "content": "down"}], "performance": {"model": "m"}}`,
			model.AnalysisAgents,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.payload)
			}, nil)
			defer cleanup()

			res, err := c.GenerateAnalysis(context.Background(), "art-1", AnalysisRequest{})
			if err != nil {
				t.Fatalf("GenerateAnalysis: %v", err)
			}
			if res.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", res.Kind, tt.wantKind)
			}
			if tt.wantKind == model.AnalysisAgents && len(res.Agents) != 2 {
				t.Errorf("agents = %d, want 2", len(res.Agents))
			}
		})
	}
}

func TestLegacyFallback_On404(t *testing.T) {
	var legacyHits atomic.Int32
	c, cleanup := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		},
		func(w http.ResponseWriter, r *http.Request) {
			legacyHits.Add(1)
			fmt.Fprint(w, analysisBody)
		})
	defer cleanup()

	res, err := c.GenerateAnalysis(context.Background(), "art-1", AnalysisRequest{})
	if err != nil {
		t.Fatalf("expected legacy fallback to succeed: %v", err)
	}
	if res == nil || legacyHits.Load() != 1 {
		t.Errorf("legacy hits = %d, want 1", legacyHits.Load())
	}
}

func TestLegacyFallback_On500(t *testing.T) {
	c, cleanup := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, analysisBody)
		})
	defer cleanup()

	if _, err := c.GenerateAnalysis(context.Background(), "art-1", AnalysisRequest{}); err != nil {
		t.Fatalf("expected legacy fallback to succeed: %v", err)
	}
}

func TestLegacyFallback_NotOn400(t *testing.T) {
	var legacyHits atomic.Int32
	c, cleanup := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"code":"bad_request","message":"nope"}}`, http.StatusBadRequest)
		},
		func(w http.ResponseWriter, r *http.Request) {
			legacyHits.Add(1)
		})
	defer cleanup()

	_, err := c.GenerateAnalysis(context.Background(), "art-1", AnalysisRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if legacyHits.Load() != 0 {
		t.Errorf("400 must not trigger legacy fallback, hits = %d", legacyHits.Load())
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "bad_request" {
		t.Errorf("err = %v", err)
	}
}

func TestLegacyFallback_NotOn502(t *testing.T) {
	var legacyHits atomic.Int32
	c, cleanup := newTestClient(t,
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		},
		func(w http.ResponseWriter, r *http.Request) {
			legacyHits.Add(1)
			fmt.Fprint(w, analysisBody)
		})
	defer cleanup()

	_, err := c.GenerateAnalysis(context.Background(), "art-1", AnalysisRequest{})
	if err == nil {
		t.Fatal("a 502 must surface, not be masked by a healthy legacy endpoint")
	}
	if legacyHits.Load() != 0 {
		t.Errorf("502 must not trigger legacy fallback, hits = %d", legacyHits.Load())
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Errorf("err = %v", err)
	}
}

// refreshProvider returns a bad token first, then good ones after Refresh.
type refreshProvider struct {
	refreshes atomic.Int32
}

func (p *refreshProvider) Token(context.Context) (string, error) {
	if p.refreshes.Load() > 0 {
		return "good", nil
	}
	return "stale", nil
}

func (p *refreshProvider) Refresh(context.Context) (string, error) {
	p.refreshes.Add(1)
	return "good", nil
}

func TestAuthRetry_RefreshesOnceOn401(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("Authorization") != "Bearer good" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, analysisBody)
	}))
	defer srv.Close()

	provider := &refreshProvider{}
	c := NewClient(srv.URL, "", provider, WithHTTPClient(srv.Client()))

	if _, err := c.GenerateAnalysis(context.Background(), "art-1", AnalysisRequest{}); err != nil {
		t.Fatalf("expected refresh-and-retry to succeed: %v", err)
	}
	if provider.refreshes.Load() != 1 {
		t.Errorf("refreshes = %d, want 1", provider.refreshes.Load())
	}
	if requests.Load() != 2 {
		t.Errorf("requests = %d, want 2", requests.Load())
	}
}

func TestAPIError_SentinelMapping(t *testing.T) {
	tests := []struct {
		status int
		target error
	}{
		{http.StatusUnauthorized, ErrAuthFailed},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadGateway, ErrServerError},
	}
	for _, tt := range tests {
		err := &APIError{Status: tt.status, Message: "x"}
		if !errors.Is(err, tt.target) {
			t.Errorf("status %d should match %v", tt.status, tt.target)
		}
	}
}

func TestRecordInteraction_SurfacesFailure(t *testing.T) {
	c, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}, nil)
	defer cleanup()

	err := c.RecordInteraction(context.Background(), Interaction{ArticleID: "a1", Kind: "like"})
	if err == nil {
		t.Fatal("interaction failure must not be silent")
	}
	if !errors.Is(err, ErrServerError) {
		t.Errorf("err = %v, want ErrServerError", err)
	}
}

func TestGeneratePanelDiscussion(t *testing.T) {
	c, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/news/art-1/panel_discussion" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{
			"topic": "Rate outlook",
			"agents": [{"agent": "bull", "stance": "long", "content": "up"}],
			"performance": {"response_time_ms": 900, "from_cache": true, "model": "gpt-4o"}
		}`)
	}, nil)
	defer cleanup()

	res, err := c.GeneratePanelDiscussion(context.Background(), "art-1", AnalysisRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("GeneratePanelDiscussion: %v", err)
	}
	if res.Topic != "Rate outlook" || len(res.Agents) != 1 {
		t.Errorf("result = %+v", res)
	}
	if !res.FromCache {
		t.Error("fromCache not propagated")
	}
}

func TestCacheAdministration(t *testing.T) {
	var cleared atomic.Bool
	c, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/api/news/art-1/cache":
			cleared.Store(true)
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/cache/stats":
			fmt.Fprint(w, `{"entries": 12, "hit_rate": 0.75, "size_bytes": 4096}`)
		default:
			http.NotFound(w, r)
		}
	}, nil)
	defer cleanup()
	ctx := context.Background()

	if err := c.ClearArticleCache(ctx, "art-1"); err != nil {
		t.Fatalf("ClearArticleCache: %v", err)
	}
	if !cleared.Load() {
		t.Error("DELETE never reached the server")
	}

	stats, err := c.CacheStats(ctx)
	if err != nil {
		t.Fatalf("CacheStats: %v", err)
	}
	if stats.Entries != 12 || stats.HitRate != 0.75 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestChatSessionLifecycle(t *testing.T) {
	var gotStart, gotMessage map[string]string
	c, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat/start":
			json.NewDecoder(r.Body).Decode(&gotStart)
			fmt.Fprint(w, `{"session_id": "srv-42"}`)
		case "/api/chat/srv-42/message":
			json.NewDecoder(r.Body).Decode(&gotMessage)
			fmt.Fprint(w, `{}`)
		default:
			http.NotFound(w, r)
		}
	}, nil)
	defer cleanup()
	ctx := context.Background()

	id, err := c.StartChat(ctx, "art-1", "u1")
	if err != nil {
		t.Fatalf("StartChat: %v", err)
	}
	if id != "srv-42" {
		t.Errorf("session id = %q", id)
	}
	if gotStart["article_id"] != "art-1" || gotStart["user_id"] != "u1" {
		t.Errorf("start payload = %v", gotStart)
	}

	if err := c.SendChatMessage(ctx, id, "what changed?"); err != nil {
		t.Fatalf("SendChatMessage: %v", err)
	}
	if gotMessage["content"] != "what changed?" {
		t.Errorf("message payload = %v", gotMessage)
	}
}

func TestStartChat_RejectsMissingSessionID(t *testing.T) {
	c, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}, nil)
	defer cleanup()

	if _, err := c.StartChat(context.Background(), "art-1", "u1"); err == nil {
		t.Fatal("a start response without a session id must fail")
	}
}

func TestChatHistoryAndSuggestions(t *testing.T) {
	c, cleanup := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/news/art-1/chat/history":
			fmt.Fprint(w, `{"messages": [{"id": "m1", "role": "user", "content": "hi"}]}`)
		case "/api/news/art-1/chat/suggestions":
			fmt.Fprint(w, `{"suggestions": ["What about bonds?"]}`)
		default:
			http.NotFound(w, r)
		}
	}, nil)
	defer cleanup()
	ctx := context.Background()

	messages, err := c.ChatHistory(ctx, "art-1")
	if err != nil {
		t.Fatalf("ChatHistory: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "hi" {
		t.Errorf("messages = %+v", messages)
	}

	suggestions, err := c.Suggestions(ctx, "art-1")
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if len(suggestions) != 1 {
		t.Errorf("suggestions = %v", suggestions)
	}
}
