// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the article chat view for the TUI.
//
// Streaming tokens arrive far faster than the terminal can usefully repaint.
// The StreamingBuffer batches them and the view repaints at a capped frame
// rate, so streaming stays smooth without burning CPU on redundant renders.
package chat

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer batches streamed tokens between repaints. Tokens flush
// when either the batch size threshold or the frame interval is reached.
//
// Thread-safety: writes come from the stream goroutine while flushes happen
// in the Bubble Tea loop, so every operation takes the mutex.
type StreamingBuffer struct {
	mu         sync.Mutex
	buffer     strings.Builder
	tokenCount int
	lastFlush  time.Time

	batchSize     int
	flushInterval time.Duration
}

const (
	defaultBatchSize = 15
	defaultMaxFPS    = 30
)

// NewStreamingBuffer creates a buffer with the default 15-token batch and
// 30fps frame cap.
func NewStreamingBuffer() *StreamingBuffer {
	return &StreamingBuffer{
		batchSize:     defaultBatchSize,
		flushInterval: time.Second / defaultMaxFPS,
		lastFlush:     time.Now(),
	}
}

// Write adds a token. Called from the stream goroutine.
func (sb *StreamingBuffer) Write(token string) {
	sb.mu.Lock()
	sb.buffer.WriteString(token)
	sb.tokenCount++
	sb.mu.Unlock()
}

// Flush returns accumulated content when a flush threshold has been reached.
func (sb *StreamingBuffer) Flush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.buffer.Len() == 0 || !sb.dueLocked() {
		return "", false
	}
	return sb.drainLocked(), true
}

// ForceFlush drains everything regardless of thresholds, used when the
// stream ends.
func (sb *StreamingBuffer) ForceFlush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.buffer.Len() == 0 {
		return "", false
	}
	return sb.drainLocked(), true
}

// Reset discards buffered content, used when a stream is cancelled.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	sb.buffer.Reset()
	sb.tokenCount = 0
	sb.lastFlush = time.Now()
	sb.mu.Unlock()
}

// Pending returns the number of buffered tokens.
func (sb *StreamingBuffer) Pending() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.tokenCount
}

func (sb *StreamingBuffer) dueLocked() bool {
	return sb.tokenCount >= sb.batchSize || time.Since(sb.lastFlush) >= sb.flushInterval
}

func (sb *StreamingBuffer) drainLocked() string {
	content := sb.buffer.String()
	sb.buffer.Reset()
	sb.tokenCount = 0
	sb.lastFlush = time.Now()
	return content
}

// =============================================================================
// FRAME TICK
// =============================================================================

// StreamTickMsg drives streaming repaints at the frame cap.
type StreamTickMsg struct {
	Time time.Time
}

func streamTickCmd() tea.Cmd {
	return tea.Tick(time.Second/defaultMaxFPS, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
