// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// =============================================================================
// CHAT SESSION
// =============================================================================

// ChatSession is a server-tracked conversation scoped to one article and one
// user. It is created lazily on the first message for an article and
// invalidated by an explicit end-session action.
type ChatSession struct {
	SessionID string    `json:"session_id"`
	ArticleID string    `json:"article_id"`
	UserID    string    `json:"user_id"`
	ThreadID  string    `json:"thread_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Messages in append order of arrival. The server is the source of
	// truth; this list is never persisted client-side.
	Messages []*ChatMessage `json:"messages"`

	// Suggestions delivered with the last chat:complete event.
	Suggestions []string `json:"suggestions,omitempty"`
}

// Append adds a message to the session in arrival order.
func (s *ChatSession) Append(msg *ChatMessage) {
	s.Messages = append(s.Messages, msg)
}

// PendingSlot returns the most recent processing placeholder, or nil if none
// exists. AI responses are patched into this slot rather than appended.
func (s *ChatSession) PendingSlot() *ChatMessage {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Processing {
			return s.Messages[i]
		}
	}
	return nil
}

// DropPending removes the most recent processing placeholder, used when a
// send fails before the assistant ever saw it. Reports whether a slot was
// removed.
func (s *ChatSession) DropPending() bool {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Processing {
			s.Messages = append(s.Messages[:i], s.Messages[i+1:]...)
			return true
		}
	}
	return false
}

// ResolveOrAppend patches content into the pending processing slot if one
// exists, otherwise appends a new assistant message.
func (s *ChatSession) ResolveOrAppend(content string, sentiment *Sentiment) *ChatMessage {
	if slot := s.PendingSlot(); slot != nil {
		slot.Resolve(content, sentiment)
		return slot
	}
	msg := NewMessage(RoleAssistant, content)
	msg.Sentiment = sentiment
	s.Append(msg)
	return msg
}

// MessageCount returns the number of messages in the session.
func (s *ChatSession) MessageCount() int {
	return len(s.Messages)
}
