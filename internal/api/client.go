// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the MarketWire platform REST and streaming client.
//
// The platform exposes an optimized analysis endpoint and an older legacy
// endpoint with identical response shapes. The client transparently falls
// back to the legacy endpoint when the optimized one is missing or failing,
// and retries exactly once with a refreshed token on authorization failures.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marketwire/marketwire-tui/internal/auth"
)

// Configuration constants for the platform API.
const (
	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	// Shared HTTP client with connection pooling for all platform requests.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient is used for SSE requests (no timeout, context-controlled).
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		// No timeout for streaming - controlled via context
	}
)

// Error variables for common platform errors.
var (
	// ErrAuthFailed indicates authentication failed even after a token refresh.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound indicates the resource does not exist on either endpoint.
	ErrNotFound = errors.New("not found")

	// ErrServerError indicates the platform returned a 5xx on both endpoints.
	ErrServerError = errors.New("server error")
)

// APIError represents an error response from the platform API.
type APIError struct {
	Status   int
	Code     string
	Message  string
	Endpoint string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("api error (HTTP %d): %s", e.Status, e.Message)
}

// Is maps API errors onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrServerError:
		return e.Status >= 500
	}
	return false
}

// apiErrorResponse is the platform's error payload shape.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a client for the MarketWire platform API.
type Client struct {
	baseURL       string
	legacyBaseURL string
	tokens        auth.Provider
	httpClient    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a platform API client. legacyBaseURL may be empty to
// disable legacy fallback.
func NewClient(baseURL, legacyBaseURL string, tokens auth.Provider, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		legacyBaseURL: strings.TrimRight(legacyBaseURL, "/"),
		tokens:        tokens,
		httpClient:    sharedHTTPClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs an authenticated GET and decodes the JSON response into out.
// It carries the same fallback and auth-retry behavior as every other call.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// =============================================================================
// REQUEST EXECUTION
// =============================================================================

// doJSON performs an authenticated JSON request against path and decodes the
// response into out (which may be nil for fire-and-forget calls).
//
// Two transparent recovery paths apply, each at most once per call:
//   - 401: refresh the token and retry the same endpoint
//   - 404 or 500 on the optimized endpoint: retry against the legacy endpoint
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, usedLegacy, err := c.send(ctx, method, c.baseURL+path, body, false)
	if err != nil {
		return err
	}

	// Fall back to the legacy endpoint when the optimized one is missing or
	// broken. Auth errors and 4xx other than 404 are not masked by fallback.
	if !usedLegacy && c.legacyBaseURL != "" && shouldFallback(resp.StatusCode) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		resp, _, err = c.send(ctx, method, c.legacyBaseURL+path, body, true)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		return decodeAPIError(resp.StatusCode, raw)
	}

	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseSize))
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// send performs one authenticated request with a single refresh-and-retry on
// 401. The response body is the caller's to close unless an error is
// returned.
func (c *Client) send(ctx context.Context, method, url string, body any, isLegacy bool) (*http.Response, bool, error) {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, isLegacy, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil && !errors.Is(err, auth.ErrNoToken) {
		return nil, isLegacy, err
	}

	resp, err := c.sendOnce(ctx, method, url, bodyBytes, token)
	if err != nil {
		return nil, isLegacy, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		// One refresh, one retry. A second 401 is surfaced to the caller.
		fresh, refreshErr := c.tokens.Refresh(ctx)
		if refreshErr != nil {
			return nil, isLegacy, fmt.Errorf("%w: %v", ErrAuthFailed, refreshErr)
		}
		resp, err = c.sendOnce(ctx, method, url, bodyBytes, fresh)
		if err != nil {
			return nil, isLegacy, err
		}
	}

	return resp, isLegacy, nil
}

func (c *Client) sendOnce(ctx context.Context, method, url string, body []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// shouldFallback reports whether a status on the optimized endpoint warrants
// retrying against the legacy endpoint. Only 404 (endpoint missing) and 500
// (endpoint broken) fall back; other statuses, 502/503 included, surface so
// gateway and capacity problems are not masked by a second request.
func shouldFallback(status int) bool {
	return status == http.StatusNotFound || status == http.StatusInternalServerError
}

// decodeAPIError builds an APIError from a non-200 response body.
func decodeAPIError(status int, raw []byte) error {
	var payload apiErrorResponse
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error.Message != "" {
		return &APIError{
			Status:  status,
			Code:    payload.Error.Code,
			Message: payload.Error.Message,
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}
