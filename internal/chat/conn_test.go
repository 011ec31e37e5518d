// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marketwire/marketwire-tui/internal/auth"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// chatServer is a minimal fake platform websocket endpoint. Received
// envelopes go to inbound; envelopes written to outbound are pushed to the
// client.
type chatServer struct {
	srv      *httptest.Server
	inbound  chan envelope
	outbound chan envelope
}

func newChatServer(t *testing.T) *chatServer {
	t.Helper()
	cs := &chatServer{
		inbound:  make(chan envelope, 16),
		outbound: make(chan envelope, 16),
	}
	cs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		go func() {
			for env := range cs.outbound {
				if ws.WriteJSON(env) != nil {
					return
				}
			}
		}()

		for {
			var env envelope
			if ws.ReadJSON(&env) != nil {
				return
			}
			cs.inbound <- env
		}
	}))
	t.Cleanup(cs.srv.Close)
	return cs
}

func (cs *chatServer) wsURL() string {
	return "ws" + strings.TrimPrefix(cs.srv.URL, "http")
}

func (cs *chatServer) push(t *testing.T, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal push: %v", err)
	}
	cs.outbound <- envelope{Event: event, Data: raw}
}

func dialTest(t *testing.T, cs *chatServer, userID string) *Conn {
	t.Helper()
	c := New(cs.wsURL(), auth.NewStatic("tok"), userID, Backoff{MaxAttempts: 0})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// waitEvent pulls events until one matches, skipping StatusEvents.
func waitEvent[T Event](t *testing.T, c *Conn) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				t.Fatal("event channel closed")
			}
			if typed, match := ev.(T); match {
				return typed
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func TestConn_JoinArticleSendsEvent(t *testing.T) {
	cs := newChatServer(t)
	c := dialTest(t, cs, "u1")

	if err := c.JoinArticle("art-42"); err != nil {
		t.Fatalf("JoinArticle: %v", err)
	}

	select {
	case env := <-cs.inbound:
		if env.Event != "join:article" {
			t.Errorf("event = %q", env.Event)
		}
		var payload map[string]string
		json.Unmarshal(env.Data, &payload)
		if payload["article_id"] != "art-42" {
			t.Errorf("payload = %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received join")
	}
}

func TestConn_DropsOwnEchoes(t *testing.T) {
	cs := newChatServer(t)
	c := dialTest(t, cs, "u1")

	// Echo of the local user's own message, then a peer message.
	cs.push(t, "chat:new_message", map[string]any{
		"id": "m1", "role": "user", "user_id": "u1", "content": "mine",
	})
	cs.push(t, "chat:new_message", map[string]any{
		"id": "m2", "role": "user", "user_id": "u2", "content": "theirs",
	})

	ev := waitEvent[MessageEvent](t, c)
	if ev.Message.UserID != "u2" {
		t.Errorf("first delivered message from %q, own echo not dropped", ev.Message.UserID)
	}
}

func TestConn_DispatchesTypedEvents(t *testing.T) {
	cs := newChatServer(t)
	c := dialTest(t, cs, "u1")

	cs.push(t, "chat:processing", nil)
	waitEvent[ProcessingEvent](t, c)

	cs.push(t, "chat:ai_response", map[string]any{
		"content":   "Rates likely hold.",
		"sentiment": map[string]any{"label": "neutral", "confidence": 0.8},
	})
	resp := waitEvent[AIResponseEvent](t, c)
	if resp.Content != "Rates likely hold." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Sentiment == nil || resp.Sentiment.Label != "neutral" {
		t.Errorf("sentiment = %+v", resp.Sentiment)
	}

	cs.push(t, "chat:complete", map[string]any{
		"suggestions": []string{"What about bonds?", "Impact on tech?"},
		"thread_id":   "th-9",
	})
	done := waitEvent[CompleteEvent](t, c)
	if len(done.Suggestions) != 2 {
		t.Errorf("suggestions = %v", done.Suggestions)
	}
	if done.ThreadID != "th-9" {
		t.Errorf("thread id = %q, want th-9", done.ThreadID)
	}

	cs.push(t, "sentiment:update", map[string]any{
		"short_term": 0.2, "medium_term": -0.1, "overall": 0.05,
	})
	trend := waitEvent[SentimentUpdateEvent](t, c)
	if trend.Trend.ShortTerm != 0.2 {
		t.Errorf("trend = %+v", trend.Trend)
	}

	cs.push(t, "room:participants", map[string]any{"count": 3})
	parts := waitEvent[ParticipantsEvent](t, c)
	if parts.Count != 3 {
		t.Errorf("count = %d", parts.Count)
	}

	cs.push(t, "article:initial_data", map[string]any{
		"participants": 2,
		"has_analysis": true,
		"messages": []map[string]any{
			{"id": "m1", "role": "assistant", "content": "Welcome back."},
		},
	})
	snap := waitEvent[InitialDataEvent](t, c)
	if !snap.HasAnalysis || snap.Participants != 2 || len(snap.Messages) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestConn_FiltersOwnTypingSignals(t *testing.T) {
	cs := newChatServer(t)
	c := dialTest(t, cs, "u1")

	cs.push(t, "chat:user_typing", map[string]any{"user_id": "u1", "typing": true})
	cs.push(t, "chat:user_typing", map[string]any{"user_id": "u2", "typing": true})

	ev := waitEvent[TypingEvent](t, c)
	if ev.UserID != "u2" {
		t.Errorf("typing event from %q, own signal not filtered", ev.UserID)
	}
}

func TestConn_SendWithoutConnectFails(t *testing.T) {
	c := New("ws://127.0.0.1:1/ws", auth.NewStatic("tok"), "u1", Backoff{})
	if err := c.SendTyping(true); err != ErrNotConnected {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestConn_PingsSafeAlongsideWrites(t *testing.T) {
	cs := newChatServer(t)

	// Drain what the server receives so its read loop never stalls.
	go func() {
		for range cs.inbound {
		}
	}()

	c := New(cs.wsURL(), auth.NewStatic("tok"), "u1", Backoff{MaxAttempts: 0})
	c.pingEvery = time.Millisecond
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	// Hammer data writes while the keepalive goroutine pings every
	// millisecond. gorilla panics on two concurrent data writers, so the
	// keepalive must use a control frame.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if err := c.SendTyping(true); err != nil {
			t.Fatalf("SendTyping: %v", err)
		}
	}
	if c.State() != StateConnected {
		t.Errorf("state = %v, want connected", c.State())
	}
}

func TestTypingSet_SetSemantics(t *testing.T) {
	ts := NewTypingSet()
	ts.Apply("u2", true)
	ts.Apply("u2", true) // repeated start is idempotent
	ts.Apply("u3", true)
	if ts.Count() != 2 {
		t.Errorf("count = %d, want 2", ts.Count())
	}

	ts.Apply("u2", false)
	if ts.Count() != 1 {
		t.Errorf("count = %d, want 1", ts.Count())
	}

	ts.Remove("u3") // user left the room
	if ts.Active() {
		t.Error("set should be empty")
	}
}

func TestConn_ReconnectRejoinsRoom(t *testing.T) {
	conns := make(chan *websocket.Conn, 2)
	joins := make(chan string, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- ws
		for {
			var env envelope
			if ws.ReadJSON(&env) != nil {
				return
			}
			if env.Event == "join:article" {
				var payload map[string]string
				json.Unmarshal(env.Data, &payload)
				joins <- payload["article_id"]
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(url, auth.NewStatic("tok"), "u1", Backoff{
		Base:        10 * time.Millisecond,
		Cap:         50 * time.Millisecond,
		MaxAttempts: 5,
	})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	if err := c.JoinArticle("art-7"); err != nil {
		t.Fatalf("JoinArticle: %v", err)
	}

	select {
	case id := <-joins:
		if id != "art-7" {
			t.Fatalf("first join = %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no initial join")
	}

	// Drop the first connection server-side; the client must reconnect and
	// rejoin the room on its own.
	first := <-conns
	first.Close()

	select {
	case id := <-joins:
		if id != "art-7" {
			t.Errorf("rejoin = %q, want art-7", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("room was not rejoined after reconnect")
	}
}
