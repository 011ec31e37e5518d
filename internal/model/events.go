// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"time"
)

// =============================================================================
// STREAMING EVENTS
// =============================================================================

// EventType discriminates streaming analysis events.
type EventType string

const (
	EventStart    EventType = "start"
	EventSection  EventType = "section"
	EventContent  EventType = "content"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// StreamingEvent is one tagged event from the analysis stream. Events are
// transient: consumed immediately, never stored.
type StreamingEvent struct {
	Type EventType `json:"type"`

	// Section name for section events.
	Section string `json:"section,omitempty"`

	// Content delta for content events. Deltas are appended to the
	// accumulating buffer, never replace it.
	Content string `json:"content,omitempty"`

	// Progress in [0,100] for progress events; overwrites previous value.
	Progress int `json:"progress,omitempty"`

	// Message carries the error text for error events.
	Message string `json:"message,omitempty"`

	// Model reported by the server once known.
	Model string `json:"model,omitempty"`

	// Err carries a transport-level error; not part of the wire format.
	Err error `json:"-"`
}

// IsTerminal reports whether the event ends the stream.
func (e StreamingEvent) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError || e.Err != nil
}

// =============================================================================
// ANALYSIS RESULTS
// =============================================================================

// Performance is the envelope the server attaches to analysis responses.
// It is informational only, never a correctness gate: callers use FromCache
// and a model mismatch to decide user-facing notifications.
type Performance struct {
	ResponseTime time.Duration `json:"response_time"`
	FromCache    bool          `json:"from_cache"`
	Model        string        `json:"model"`
}

// AnalysisKind discriminates the normalized analysis payload.
type AnalysisKind string

const (
	// AnalysisText is a single markdown document.
	AnalysisText AnalysisKind = "text"
	// AnalysisAgents is a set of per-agent takes (panel style).
	AnalysisAgents AnalysisKind = "agents"
)

// AgentTake is one agent's contribution to a multi-agent analysis.
type AgentTake struct {
	Agent     string  `json:"agent"`
	Stance    string  `json:"stance,omitempty"`
	Content   string  `json:"content"`
	Sentiment float64 `json:"sentiment,omitempty"`
}

// AnalysisResult is the single normalized shape for every analysis response
// the server can produce. The server historically returned the payload as a
// plain string, an object, or an agent array; the API boundary decodes all
// of them into this sum exactly once.
type AnalysisResult struct {
	Kind        AnalysisKind `json:"kind"`
	Content     string       `json:"content,omitempty"`
	Agents      []AgentTake  `json:"agents,omitempty"`
	Performance Performance  `json:"performance"`
	FromCache   bool         `json:"from_cache"`
}

// PanelResult is a generated panel discussion between analyst agents.
type PanelResult struct {
	Topic       string      `json:"topic,omitempty"`
	Agents      []AgentTake `json:"agents"`
	Performance Performance `json:"performance"`
	FromCache   bool        `json:"from_cache"`
}

// CacheStats reports the server-side analysis cache state.
type CacheStats struct {
	Entries   int     `json:"entries"`
	HitRate   float64 `json:"hit_rate"`
	SizeBytes int64   `json:"size_bytes"`
}

// =============================================================================
// SENTIMENT TREND
// =============================================================================

// SentimentTrend is display-only market sentiment, overwritten on each
// sentiment:update push.
type SentimentTrend struct {
	ShortTerm  float64 `json:"short_term"`
	MediumTerm float64 `json:"medium_term"`
	Overall    float64 `json:"overall"`
}

// SentimentAlert is a pushed threshold-crossing notification.
type SentimentAlert struct {
	ArticleID string  `json:"article_id"`
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
	Message   string  `json:"message,omitempty"`
}

// =============================================================================
// MARKET DATA
// =============================================================================

// Quote is a real-time quote for a single ticker.
type Quote struct {
	Ticker        string    `json:"ticker"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	AsOf          time.Time `json:"as_of"`
}

// =============================================================================
// WIRE HELPERS
// =============================================================================

// DecodeStreamingEvent parses one SSE data payload into a StreamingEvent.
// Malformed payloads return an error; callers skip them rather than abort.
func DecodeStreamingEvent(data []byte) (StreamingEvent, error) {
	var ev StreamingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return StreamingEvent{}, err
	}
	return ev, nil
}
