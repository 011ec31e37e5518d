// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat maintains the realtime WebSocket connection to the MarketWire
// platform: article chat rooms, typing signals, and sentiment pushes.
//
// The connection owns reconnection. On an abnormal close it retries with
// exponential backoff, rejoins the current article room, and restores the
// sentiment subscription, so consumers only ever observe StatusEvents.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marketwire/marketwire-tui/internal/auth"
	"github.com/marketwire/marketwire-tui/internal/model"
)

// Connection tuning constants.
const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	readTimeout      = 60 * time.Second
	pingInterval     = 30 * time.Second
)

var (
	// ErrClosed indicates the connection was closed by the caller.
	ErrClosed = errors.New("connection closed")

	// ErrNotConnected indicates a send was attempted with no live socket.
	ErrNotConnected = errors.New("not connected")
)

// =============================================================================
// CONNECTION
// =============================================================================

// Conn is a managed chat connection.
type Conn struct {
	url     string
	tokens  auth.Provider
	userID  string
	backoff Backoff
	dialer  *websocket.Dialer

	// pingEvery is pingInterval except in tests, which shorten it.
	pingEvery time.Duration

	events chan Event

	mu           sync.Mutex
	ws           *websocket.Conn
	state        ConnState
	articleID    string
	sentimentSub bool
	closed       bool
	cancel       context.CancelFunc
}

// New creates a chat connection. The token is fetched at dial time, not at
// construction, because token acquisition is asynchronous.
func New(url string, tokens auth.Provider, userID string, backoff Backoff) *Conn {
	return &Conn{
		url:       url,
		tokens:    tokens,
		userID:    userID,
		backoff:   backoff,
		dialer:    &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		pingEvery: pingInterval,
		events:    make(chan Event, 64),
		state:     StateDisconnected,
	}
}

// Events returns the event channel. Closed after Close or when reconnection
// is exhausted.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// State returns the current connection state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the connection and starts the managed read loop.
func (c *Conn) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return ErrClosed
	}
	c.cancel = cancel
	c.state = StateConnecting
	c.mu.Unlock()

	ws, err := c.dial(ctx)
	if err != nil {
		cancel()
		c.setState(StateDisconnected)
		return err
	}

	c.mu.Lock()
	c.ws = ws
	c.state = StateConnected
	c.mu.Unlock()
	c.emit(StatusEvent{State: StateConnected})

	go c.run(ctx, ws)
	return nil
}

// Close shuts the connection down permanently. No reconnection follows.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateClosed
	ws := c.ws
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ws != nil {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		return ws.Close()
	}
	return nil
}

// dial opens one websocket attempt with a fresh bearer token.
func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	token, err := c.tokens.Token(ctx)
	if err != nil && !errors.Is(err, auth.ErrNoToken) {
		return nil, err
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	ws, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}

	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	return ws, nil
}

// =============================================================================
// OUTBOUND
// =============================================================================

// JoinArticle enters an article chat room. The room is rejoined automatically
// after a reconnect.
func (c *Conn) JoinArticle(articleID string) error {
	c.mu.Lock()
	c.articleID = articleID
	c.mu.Unlock()
	return c.writeEvent(wireJoinArticle, map[string]string{"article_id": articleID})
}

// LeaveArticle exits the current article room.
func (c *Conn) LeaveArticle() error {
	c.mu.Lock()
	articleID := c.articleID
	c.articleID = ""
	c.mu.Unlock()
	if articleID == "" {
		return nil
	}
	return c.writeEvent(wireLeaveArticle, map[string]string{"article_id": articleID})
}

// SubscribeSentiment subscribes to sentiment pushes for the current article.
// The subscription is restored after a reconnect.
func (c *Conn) SubscribeSentiment() error {
	c.mu.Lock()
	c.sentimentSub = true
	articleID := c.articleID
	c.mu.Unlock()
	return c.writeEvent(wireSentimentSubscribe, map[string]string{"article_id": articleID})
}

// SendTyping sends a typing state change. Implements Notifier for the
// debouncer.
func (c *Conn) SendTyping(typing bool) error {
	return c.writeEvent(wireChatTyping, map[string]any{
		"user_id": c.userID,
		"typing":  typing,
	})
}

// writeEvent marshals and sends one envelope. Writes are serialized under
// the connection mutex; gorilla allows only one concurrent writer.
func (c *Conn) writeEvent(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.ws == nil || c.state != StateConnected {
		return ErrNotConnected
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(envelope{Event: event, Data: raw})
}

// =============================================================================
// READ LOOP & RECONNECTION
// =============================================================================

// run reads until the socket fails, then drives reconnection.
func (c *Conn) run(ctx context.Context, ws *websocket.Conn) {
	defer close(c.events)

	for {
		err := c.readLoop(ctx, ws)

		c.mu.Lock()
		closed := c.closed
		c.ws = nil
		c.mu.Unlock()

		if closed || ctx.Err() != nil {
			return
		}

		// Normal closure from the server also ends the session.
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			c.setState(StateDisconnected)
			c.emit(StatusEvent{State: StateDisconnected, Err: err})
			return
		}

		next, ok := c.reconnect(ctx)
		if !ok {
			return
		}
		ws = next
	}
}

// reconnect retries the dial under the backoff policy, restoring the room
// and sentiment subscription on success.
func (c *Conn) reconnect(ctx context.Context) (*websocket.Conn, bool) {
	if c.backoff.MaxAttempts == 0 {
		c.setState(StateDisconnected)
		c.emit(StatusEvent{State: StateDisconnected})
		return nil, false
	}

	c.setState(StateReconnecting)

	for attempt := 1; ; attempt++ {
		if c.backoff.Exhausted(attempt) {
			c.setState(StateDisconnected)
			c.emit(StatusEvent{State: StateDisconnected, Attempt: attempt - 1})
			return nil, false
		}

		c.emit(StatusEvent{State: StateReconnecting, Attempt: attempt})

		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(c.backoff.Delay(attempt)):
		}

		ws, err := c.dial(ctx)
		if err != nil {
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			ws.Close()
			return nil, false
		}
		c.ws = ws
		c.state = StateConnected
		articleID := c.articleID
		sentimentSub := c.sentimentSub
		c.mu.Unlock()

		c.emit(StatusEvent{State: StateConnected, Attempt: attempt})

		if articleID != "" {
			c.writeEvent(wireJoinArticle, map[string]string{"article_id": articleID})
			if sentimentSub {
				c.writeEvent(wireSentimentSubscribe, map[string]string{"article_id": articleID})
			}
		}
		return ws, true
	}
}

// readLoop reads and dispatches envelopes until the socket errors.
func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) error {
	pinger := time.NewTicker(c.pingEvery)
	defer pinger.Stop()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-pinger.C:
				// WriteControl is safe to call concurrently with the data
				// writes serialized under c.mu; WriteMessage is not.
				if err := ws.WriteControl(websocket.PingMessage, nil,
					time.Now().Add(writeTimeout)); err != nil {
					return
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var env envelope
		if err := ws.ReadJSON(&env); err != nil {
			return err
		}
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		c.dispatch(env)
	}
}

// dispatch decodes one envelope into a typed event. Unknown events and
// malformed payloads are dropped, never fatal.
func (c *Conn) dispatch(env envelope) {
	switch env.Event {
	case wireInitialData:
		var payload struct {
			Messages     []*model.ChatMessage `json:"messages,omitempty"`
			Participants int                  `json:"participants"`
			HasAnalysis  bool                 `json:"has_analysis"`
		}
		if json.Unmarshal(env.Data, &payload) != nil {
			return
		}
		c.emit(InitialDataEvent{
			Messages:     payload.Messages,
			Participants: payload.Participants,
			HasAnalysis:  payload.HasAnalysis,
		})

	case wireNewMessage:
		var msg model.ChatMessage
		if json.Unmarshal(env.Data, &msg) != nil {
			return
		}
		// The server echoes every room message back, including the local
		// user's own sends, which are already displayed optimistically.
		if msg.UserID == c.userID {
			return
		}
		c.emit(MessageEvent{Message: &msg})

	case wireAIResponse:
		var payload struct {
			Content   string           `json:"content"`
			Sentiment *model.Sentiment `json:"sentiment,omitempty"`
			MessageID string           `json:"message_id,omitempty"`
		}
		if json.Unmarshal(env.Data, &payload) != nil {
			return
		}
		c.emit(AIResponseEvent{
			Content:   payload.Content,
			Sentiment: payload.Sentiment,
			MessageID: payload.MessageID,
		})

	case wireProcessing:
		c.emit(ProcessingEvent{})

	case wireComplete:
		var payload struct {
			Suggestions []string `json:"suggestions,omitempty"`
			ThreadID    string   `json:"thread_id,omitempty"`
		}
		json.Unmarshal(env.Data, &payload)
		c.emit(CompleteEvent{Suggestions: payload.Suggestions, ThreadID: payload.ThreadID})

	case wireUserTyping:
		var payload struct {
			UserID string `json:"user_id"`
			Typing bool   `json:"typing"`
		}
		if json.Unmarshal(env.Data, &payload) != nil {
			return
		}
		// The local user's own typing signals are not displayed.
		if payload.UserID == c.userID {
			return
		}
		c.emit(TypingEvent{UserID: payload.UserID, Typing: payload.Typing})

	case wireSentimentUpdate:
		var trend model.SentimentTrend
		if json.Unmarshal(env.Data, &trend) != nil {
			return
		}
		c.emit(SentimentUpdateEvent{Trend: trend})

	case wireSentimentAlert:
		var alert model.SentimentAlert
		if json.Unmarshal(env.Data, &alert) != nil {
			return
		}
		c.emit(AlertEvent{Alert: alert})

	case wireUserLeft:
		var payload struct {
			UserID string `json:"user_id"`
		}
		if json.Unmarshal(env.Data, &payload) != nil {
			return
		}
		c.emit(UserLeftEvent{UserID: payload.UserID})

	case wireParticipants:
		var payload struct {
			Count int `json:"count"`
		}
		if json.Unmarshal(env.Data, &payload) != nil {
			return
		}
		c.emit(ParticipantsEvent{Count: payload.Count})
	}
}

func (c *Conn) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		// Consumer is stalled; drop rather than block the read loop.
	}
}

func (c *Conn) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
