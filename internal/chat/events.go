// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"

	"github.com/marketwire/marketwire-tui/internal/model"
)

// =============================================================================
// WIRE PROTOCOL
// =============================================================================

// Wire event names, client to server. Chat messages do not travel over the
// socket; they are posted through the REST chat session endpoints and echoed
// back as chat:new_message.
const (
	wireJoinArticle        = "join:article"
	wireLeaveArticle       = "leave:article"
	wireSentimentSubscribe = "sentiment:subscribe"
	wireChatTyping         = "chat:typing"
)

// Wire event names, server to client.
const (
	wireInitialData     = "article:initial_data"
	wireNewMessage      = "chat:new_message"
	wireAIResponse      = "chat:ai_response"
	wireProcessing      = "chat:processing"
	wireComplete        = "chat:complete"
	wireUserTyping      = "chat:user_typing"
	wireSentimentUpdate = "sentiment:update"
	wireSentimentAlert  = "sentiment:alert"
	wireUserLeft        = "user:left"
	wireParticipants    = "room:participants"
)

// envelope is the framing for every websocket message in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// =============================================================================
// CLIENT-FACING EVENTS
// =============================================================================

// Event is a typed server push delivered to the UI.
type Event interface {
	chatEvent()
}

// InitialDataEvent is the room snapshot sent right after joining an article:
// recent messages, participant count, and whether an analysis already exists
// server-side. HasAnalysis gates auto-generation on open.
type InitialDataEvent struct {
	Messages     []*model.ChatMessage
	Participants int
	HasAnalysis  bool
}

// MessageEvent is a chat message from another participant. The connection
// filters out echoes of the local user's own sends before delivery.
type MessageEvent struct {
	Message *model.ChatMessage
}

// AIResponseEvent is the assistant's answer to a pending question. Consumers
// patch it into the processing placeholder rather than appending.
type AIResponseEvent struct {
	Content   string
	Sentiment *model.Sentiment
	MessageID string
}

// ProcessingEvent signals the assistant has started working on a question.
type ProcessingEvent struct{}

// CompleteEvent signals the assistant finished; carries follow-up
// suggestions and the server-side conversation thread id when the server
// provides them.
type CompleteEvent struct {
	Suggestions []string
	ThreadID    string
}

// TypingEvent reports a change in another participant's typing state.
type TypingEvent struct {
	UserID string
	Typing bool
}

// SentimentUpdateEvent replaces the displayed sentiment trend.
type SentimentUpdateEvent struct {
	Trend model.SentimentTrend
}

// AlertEvent is a pushed sentiment threshold alert.
type AlertEvent struct {
	Alert model.SentimentAlert
}

// UserLeftEvent reports a participant leaving the article room.
type UserLeftEvent struct {
	UserID string
}

// ParticipantsEvent reports the current room participant count.
type ParticipantsEvent struct {
	Count int
}

// StatusEvent reports connection state transitions, including reconnect
// progress.
type StatusEvent struct {
	State   ConnState
	Attempt int
	Err     error
}

func (InitialDataEvent) chatEvent()     {}
func (MessageEvent) chatEvent()         {}
func (AIResponseEvent) chatEvent()      {}
func (ProcessingEvent) chatEvent()      {}
func (CompleteEvent) chatEvent()        {}
func (TypingEvent) chatEvent()          {}
func (SentimentUpdateEvent) chatEvent() {}
func (AlertEvent) chatEvent()           {}
func (UserLeftEvent) chatEvent()        {}
func (ParticipantsEvent) chatEvent()    {}
func (StatusEvent) chatEvent()          {}

// ConnState is the connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

// String returns a short label for status display.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// =============================================================================
// TYPING SET
// =============================================================================

// TypingSet tracks which other participants are currently typing. Repeated
// typing-start events from one user are idempotent.
type TypingSet struct {
	users map[string]bool
}

// NewTypingSet creates an empty typing set.
func NewTypingSet() *TypingSet {
	return &TypingSet{users: make(map[string]bool)}
}

// Apply updates the set from a typing event.
func (t *TypingSet) Apply(userID string, typing bool) {
	if typing {
		t.users[userID] = true
	} else {
		delete(t.users, userID)
	}
}

// Remove drops a user, used when they leave the room.
func (t *TypingSet) Remove(userID string) {
	delete(t.users, userID)
}

// Count returns the number of users currently typing.
func (t *TypingSet) Count() int {
	return len(t.users)
}

// Active reports whether anyone is typing.
func (t *TypingSet) Active() bool {
	return len(t.users) > 0
}
