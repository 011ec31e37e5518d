// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
)

func TestResolveOrAppend_PatchesPendingSlot(t *testing.T) {
	sess := &ChatSession{SessionID: "s1", ArticleID: "a1"}
	sess.Append(NewUserMessage("what does this mean for rates?"))
	pending := NewProcessingMessage()
	sess.Append(pending)

	got := sess.ResolveOrAppend("Rates likely hold.", &Sentiment{Label: "neutral", Confidence: 0.8})

	if got != pending {
		t.Fatalf("expected response patched into pending slot, got new message")
	}
	if got.Processing {
		t.Errorf("slot should no longer be processing")
	}
	if got.Content != "Rates likely hold." {
		t.Errorf("content = %q", got.Content)
	}
	if sess.MessageCount() != 2 {
		t.Errorf("message count = %d, want 2", sess.MessageCount())
	}
}

func TestResolveOrAppend_AppendsWithoutSlot(t *testing.T) {
	sess := &ChatSession{SessionID: "s1", ArticleID: "a1"}
	sess.Append(NewUserMessage("hello"))

	got := sess.ResolveOrAppend("hi", nil)

	if got.Role != RoleAssistant {
		t.Errorf("role = %q, want assistant", got.Role)
	}
	if sess.MessageCount() != 2 {
		t.Errorf("message count = %d, want 2", sess.MessageCount())
	}
}

func TestDropPending_RemovesOnlyTheSlot(t *testing.T) {
	sess := &ChatSession{SessionID: "s1", ArticleID: "a1"}
	sess.Append(NewUserMessage("question"))
	sess.Append(NewProcessingMessage())

	if !sess.DropPending() {
		t.Fatal("expected the placeholder to be dropped")
	}
	if sess.MessageCount() != 1 {
		t.Errorf("message count = %d, want 1", sess.MessageCount())
	}
	if sess.Messages[0].Role != RoleUser {
		t.Errorf("surviving message role = %q", sess.Messages[0].Role)
	}
	if sess.DropPending() {
		t.Error("nothing pending, drop should report false")
	}
}

func TestStreamingMessage_AccumulatesTokens(t *testing.T) {
	msg := NewStreamingMessage()
	msg.AppendToken("The Fed ")
	msg.AppendToken("held ")
	msg.AppendToken("rates.")

	if got := msg.GetDisplayContent(); got != "The Fed held rates." {
		t.Errorf("display content = %q", got)
	}

	msg.FinalizeStream()
	if msg.IsStreaming {
		t.Errorf("message should no longer be streaming")
	}
	if msg.Content != "The Fed held rates." {
		t.Errorf("content = %q", msg.Content)
	}

	// Tokens after finalize are ignored.
	msg.AppendToken("extra")
	if msg.Content != "The Fed held rates." {
		t.Errorf("content mutated after finalize: %q", msg.Content)
	}
}

func TestPreview_RuneTruncation(t *testing.T) {
	msg := NewMessage(RoleUser, "ราคาหุ้นขึ้นเพราะอะไรวันนี้")
	got := msg.Preview(10)
	if runes := []rune(got); len(runes) > 10 {
		t.Errorf("preview has %d runes, want <= 10", len(runes))
	}
}

func TestDecodeStreamingEvent(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    EventType
		wantErr bool
	}{
		{"content", `{"type":"content","content":"abc"}`, EventContent, false},
		{"progress", `{"type":"progress","progress":42}`, EventProgress, false},
		{"complete", `{"type":"complete"}`, EventComplete, false},
		{"malformed", `{"type":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeStreamingEvent([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if !tt.wantErr && ev.Type != tt.want {
				t.Errorf("type = %q, want %q", ev.Type, tt.want)
			}
		})
	}
}

func TestStreamingEvent_IsTerminal(t *testing.T) {
	if (StreamingEvent{Type: EventContent}).IsTerminal() {
		t.Errorf("content should not be terminal")
	}
	if !(StreamingEvent{Type: EventComplete}).IsTerminal() {
		t.Errorf("complete should be terminal")
	}
	if !(StreamingEvent{Type: EventError}).IsTerminal() {
		t.Errorf("error should be terminal")
	}
}
