// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Analyst"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// SENTIMENT
// =============================================================================

// Sentiment is the model-assigned sentiment of a single message.
type Sentiment struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// ChatMessage represents a single message in an article chat session.
// The server is the source of truth for history; messages live only in the
// in-memory session list on the client.
type ChatMessage struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string `json:"content"`

	// Optional assistant annotations
	Sentiment       *Sentiment `json:"sentiment,omitempty"`
	ParentMessageID string     `json:"parent_message_id,omitempty"`

	// Processing marks a placeholder slot awaiting the AI response. The next
	// chat:ai_response event is patched into this slot instead of appended.
	Processing bool `json:"processing,omitempty"`

	// Streaming state (not persisted)
	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	IsStreaming   bool            `json:"-"`
	streamContent strings.Builder `json:"-"`

	// Performance metrics (for assistant messages)
	ResponseTime time.Duration `json:"response_time_ns,omitempty"`
	FromCache    bool          `json:"from_cache,omitempty"`
	Model        string        `json:"model,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *ChatMessage {
	return &ChatMessage{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *ChatMessage {
	return NewMessage(RoleUser, content)
}

// NewProcessingMessage creates an assistant placeholder that is awaiting the
// AI response.
func NewProcessingMessage() *ChatMessage {
	return &ChatMessage{
		ID:         generateID(),
		Role:       RoleAssistant,
		Timestamp:  time.Now(),
		Processing: true,
	}
}

// NewStreamingMessage creates an assistant message that accumulates tokens.
func NewStreamingMessage() *ChatMessage {
	return &ChatMessage{
		ID:          generateID(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendToken appends a token to a streaming message.
func (m *ChatMessage) AppendToken(token string) {
	if m.IsStreaming {
		m.streamContent.WriteString(token)
	}
}

// FinalizeStream completes streaming and merges accumulated content.
func (m *ChatMessage) FinalizeStream() {
	if !m.IsStreaming {
		return
	}
	m.Content = m.streamContent.String()
	m.streamContent.Reset()
	m.IsStreaming = false
}

// Resolve fills a processing placeholder with the delivered AI response.
func (m *ChatMessage) Resolve(content string, sentiment *Sentiment) {
	m.Content = content
	m.Sentiment = sentiment
	m.Processing = false
}

// GetDisplayContent returns the content to display (streaming or final).
func (m *ChatMessage) GetDisplayContent() string {
	if m.IsStreaming {
		return m.streamContent.String()
	}
	return m.Content
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *ChatMessage) Preview(maxLen int) string {
	content := m.GetDisplayContent()
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m *ChatMessage) IsEmpty() bool {
	return len(m.Content) == 0 && m.streamContent.Len() == 0
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
func generateID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}
