// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/marketwire/marketwire-tui/internal/model"
)

// STREAMING: Robust SSE parsing with error handling

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

// MaxChunkSize is the maximum allowed size for a single SSE event (64KB)
const MaxChunkSize = 64 * 1024

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event from the stream.
// Returns the event type, data, and any error.
// Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte
	var size int

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// If we have data, return it before EOF
				if len(dataLines) > 0 {
					return eventType, bytes.Join(dataLines, []byte("\n")), nil
				}
				return "", nil, io.EOF
			}
			return "", nil, err
		}

		size += len(line)
		if size > MaxChunkSize {
			return "", nil, fmt.Errorf("sse event too large: %d bytes", size)
		}

		// Trim trailing newline and carriage return
		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		// Parse field
		if bytes.HasPrefix(line, []byte("event:")) {
			eventType = string(bytes.TrimSpace(line[6:]))
		} else if bytes.HasPrefix(line, []byte("data:")) {
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		}
		// Ignore other fields (id:, retry:, comments starting with :)
	}
}

// =============================================================================
// STREAM ERRORS
// =============================================================================

// StreamError reports a transport failure partway through a stream. Partial
// holds the content received before the failure so callers can keep what
// arrived instead of discarding the whole analysis.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream failed after %d bytes: %v", len(e.Partial), e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ANALYSIS STREAM
// =============================================================================

// AnalysisStream is a live streaming analysis session for one article. Events
// arrive on the Events channel; the channel is closed after the terminal
// event. The underlying connection is closed as soon as a complete or error
// event arrives, without waiting for the server to hang up.
type AnalysisStream struct {
	events chan model.StreamingEvent
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// Events returns the event channel. Closed after the terminal event.
func (s *AnalysisStream) Events() <-chan model.StreamingEvent {
	return s.events
}

// Cancel aborts the stream. The events channel closes shortly after; no
// terminal event is guaranteed once Cancel has been called.
func (s *AnalysisStream) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}

// StreamAnalysis opens a streaming analysis request for an article. The
// returned stream delivers start, section, content, progress, and finally
// exactly one terminal event.
func (c *Client) StreamAnalysis(ctx context.Context, articleID string, req AnalysisRequest) (*AnalysisStream, error) {
	ctx, cancel := context.WithCancel(ctx)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	path := fmt.Sprintf("/api/news/%s/llm_analysis/stream", url.PathEscape(articleID))
	resp, err := c.openSSE(ctx, c.baseURL+path, req, token)
	if err != nil {
		cancel()
		return nil, err
	}

	stream := &AnalysisStream{
		events: make(chan model.StreamingEvent, 64),
		cancel: cancel,
	}
	go stream.pump(ctx, resp.Body)
	return stream, nil
}

// openSSE issues the streaming POST and verifies the response is an event
// stream. The caller owns resp.Body on success.
func (c *Client) openSSE(ctx context.Context, fullURL string, req AnalysisRequest, token string) (*http.Response, error) {
	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	// PERFORMANCE: Use shared streaming client with connection pooling
	resp, err := sharedStreamingClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		resp.Body.Close()
		return nil, decodeAPIError(resp.StatusCode, raw)
	}
	return resp, nil
}

// pump reads SSE events off the wire and forwards them as StreamingEvents.
// It owns body and closes it on exit, which is also how close-on-complete is
// enforced: the first terminal event ends the loop immediately.
func (s *AnalysisStream) pump(ctx context.Context, body io.ReadCloser) {
	defer close(s.events)
	defer body.Close()

	reader := NewSSEReader(body)
	var received bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return
			}
			s.emit(ctx, model.StreamingEvent{
				Type: model.EventError,
				Err:  &StreamError{Partial: received.String(), Err: err},
			})
			return
		}

		ev, err := model.DecodeStreamingEvent(data)
		if err != nil {
			// Skip malformed events rather than abort the stream.
			continue
		}
		if ev.Type == model.EventContent {
			received.WriteString(ev.Content)
		}

		if !s.emit(ctx, ev) {
			return
		}
		if ev.IsTerminal() {
			return
		}
	}
}

func (s *AnalysisStream) emit(ctx context.Context, ev model.StreamingEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// =============================================================================
// STREAMER
// =============================================================================

// Streamer enforces at most one active analysis stream. Starting a new
// stream cancels the previous one first, so late events from a superseded
// stream can never interleave with the new one.
type Streamer struct {
	client *Client

	mu     sync.Mutex
	active *AnalysisStream
}

// NewStreamer creates a streamer over the given client.
func NewStreamer(client *Client) *Streamer {
	return &Streamer{client: client}
}

// Start cancels any active stream and opens a new one.
func (st *Streamer) Start(ctx context.Context, articleID string, req AnalysisRequest) (*AnalysisStream, error) {
	st.mu.Lock()
	if st.active != nil {
		st.active.Cancel()
		st.active = nil
	}
	st.mu.Unlock()

	stream, err := st.client.StreamAnalysis(ctx, articleID, req)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	st.active = stream
	st.mu.Unlock()
	return stream, nil
}

// Stop cancels the active stream, if any.
func (st *Streamer) Stop() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.active != nil {
		st.active.Cancel()
		st.active = nil
	}
}

// jsonBody marshals v into a request body reader.
func jsonBody(v any) (io.Reader, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return bytes.NewReader(raw), nil
}
