// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/marketwire/marketwire-tui/internal/model"
)

// =============================================================================
// REQUEST / RESPONSE SHAPES
// =============================================================================

// AnalysisRequest asks the platform to generate (or serve from cache) the
// analysis for one article.
type AnalysisRequest struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
	// ForceRefresh bypasses the server-side cache.
	ForceRefresh bool `json:"force_refresh,omitempty"`
}

// analysisResponse is the wire shape of an analysis response. The
// llm_analysis field is historically polymorphic: a plain markdown string,
// an object with a content field, or an array of agent takes. It is decoded
// exactly once, here, into the normalized model.AnalysisResult.
type analysisResponse struct {
	LLMAnalysis json.RawMessage `json:"llm_analysis"`
	Performance struct {
		ResponseTimeMs int64  `json:"response_time_ms"`
		FromCache      bool   `json:"from_cache"`
		Model          string `json:"model"`
	} `json:"performance"`
}

// =============================================================================
// ANALYSIS OPERATIONS
// =============================================================================

// GenerateAnalysis generates or fetches the analysis for an article.
func (c *Client) GenerateAnalysis(ctx context.Context, articleID string, req AnalysisRequest) (*model.AnalysisResult, error) {
	var resp analysisResponse
	path := fmt.Sprintf("/api/news/%s/llm_analysis", url.PathEscape(articleID))
	if err := c.doJSON(ctx, "POST", path, req, &resp); err != nil {
		return nil, err
	}
	return normalizeAnalysis(&resp)
}

// GeneratePanelDiscussion generates a multi-agent panel discussion for an
// article.
func (c *Client) GeneratePanelDiscussion(ctx context.Context, articleID string, req AnalysisRequest) (*model.PanelResult, error) {
	var resp struct {
		Topic       string            `json:"topic"`
		Agents      []model.AgentTake `json:"agents"`
		Performance struct {
			ResponseTimeMs int64  `json:"response_time_ms"`
			FromCache      bool   `json:"from_cache"`
			Model          string `json:"model"`
		} `json:"performance"`
	}
	path := fmt.Sprintf("/api/news/%s/panel_discussion", url.PathEscape(articleID))
	if err := c.doJSON(ctx, "POST", path, req, &resp); err != nil {
		return nil, err
	}
	return &model.PanelResult{
		Topic:  resp.Topic,
		Agents: resp.Agents,
		Performance: model.Performance{
			ResponseTime: time.Duration(resp.Performance.ResponseTimeMs) * time.Millisecond,
			FromCache:    resp.Performance.FromCache,
			Model:        resp.Performance.Model,
		},
		FromCache: resp.Performance.FromCache,
	}, nil
}

// ClearArticleCache invalidates the cached analysis for an article.
func (c *Client) ClearArticleCache(ctx context.Context, articleID string) error {
	path := fmt.Sprintf("/api/news/%s/cache", url.PathEscape(articleID))
	return c.doJSON(ctx, "DELETE", path, nil, nil)
}

// CacheStats fetches server-side analysis cache statistics.
func (c *Client) CacheStats(ctx context.Context) (*model.CacheStats, error) {
	var stats model.CacheStats
	if err := c.doJSON(ctx, "GET", "/api/cache/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// =============================================================================
// CHAT SESSIONS
// =============================================================================

// StartChat creates a server-tracked chat session for an article and returns
// the server-issued session id. Session identity belongs to the server;
// clients never mint their own.
func (c *Client) StartChat(ctx context.Context, articleID, userID string) (string, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	body := map[string]string{
		"article_id": articleID,
		"user_id":    userID,
	}
	if err := c.doJSON(ctx, "POST", "/api/chat/start", body, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("chat start returned no session id")
	}
	return resp.SessionID, nil
}

// SendChatMessage posts one user message into a chat session. The assistant's
// processing signal and answer arrive over the websocket, not in this
// response.
func (c *Client) SendChatMessage(ctx context.Context, sessionID, content string) error {
	path := fmt.Sprintf("/api/chat/%s/message", url.PathEscape(sessionID))
	return c.doJSON(ctx, "POST", path, map[string]string{"content": content}, nil)
}

// =============================================================================
// CHAT HISTORY & SUGGESTIONS
// =============================================================================

// ChatHistory fetches the server-held message history for an article chat.
// The server is the source of truth for history.
func (c *Client) ChatHistory(ctx context.Context, articleID string) ([]*model.ChatMessage, error) {
	var resp struct {
		Messages []*model.ChatMessage `json:"messages"`
	}
	path := fmt.Sprintf("/api/news/%s/chat/history", url.PathEscape(articleID))
	if err := c.doJSON(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Suggestions fetches follow-up question suggestions for an article chat.
func (c *Client) Suggestions(ctx context.Context, articleID string) ([]string, error) {
	var resp struct {
		Suggestions []string `json:"suggestions"`
	}
	path := fmt.Sprintf("/api/news/%s/chat/suggestions", url.PathEscape(articleID))
	if err := c.doJSON(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Suggestions, nil
}

// =============================================================================
// INTERACTIONS
// =============================================================================

// Interaction records a user engagement event against an article.
type Interaction struct {
	ArticleID string    `json:"article_id"`
	Kind      string    `json:"kind"` // "view", "like", "share", "chat"
	At        time.Time `json:"at"`
}

// RecordInteraction posts one interaction event. Callers queue these locally
// and sync when connectivity allows; a failed call must not be reported as
// success.
func (c *Client) RecordInteraction(ctx context.Context, in Interaction) error {
	return c.doJSON(ctx, "POST", "/api/interactions", in, nil)
}

// =============================================================================
// VARIANT NORMALIZATION
// =============================================================================

// normalizeAnalysis decodes the polymorphic llm_analysis payload into the
// single AnalysisResult sum. Downstream code never sees the raw variants.
func normalizeAnalysis(resp *analysisResponse) (*model.AnalysisResult, error) {
	perf := model.Performance{
		ResponseTime: time.Duration(resp.Performance.ResponseTimeMs) * time.Millisecond,
		FromCache:    resp.Performance.FromCache,
		Model:        resp.Performance.Model,
	}

	raw := resp.LLMAnalysis
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty llm_analysis payload")
	}

	switch raw[0] {
	case '"':
		// Variant 1: plain markdown string.
		var content string
		if err := json.Unmarshal(raw, &content); err != nil {
			return nil, fmt.Errorf("failed to decode analysis string: %w", err)
		}
		return &model.AnalysisResult{
			Kind:        model.AnalysisText,
			Content:     content,
			Performance: perf,
			FromCache:   perf.FromCache,
		}, nil

	case '{':
		// Variant 2: object wrapping the markdown content.
		var obj struct {
			Content  string `json:"content"`
			Analysis string `json:"analysis"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("failed to decode analysis object: %w", err)
		}
		content := obj.Content
		if content == "" {
			content = obj.Analysis
		}
		return &model.AnalysisResult{
			Kind:        model.AnalysisText,
			Content:     content,
			Performance: perf,
			FromCache:   perf.FromCache,
		}, nil

	case '[':
		// Variant 3: array of agent takes.
		var agents []model.AgentTake
		if err := json.Unmarshal(raw, &agents); err != nil {
			return nil, fmt.Errorf("failed to decode agent takes: %w", err)
		}
		return &model.AnalysisResult{
			Kind:        model.AnalysisAgents,
			Agents:      agents,
			Performance: perf,
			FromCache:   perf.FromCache,
		}, nil
	}

	return nil, fmt.Errorf("unrecognized llm_analysis shape")
}
