// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth supplies bearer tokens for the platform API and chat socket.
//
// Token acquisition is asynchronous on the identity provider side, so every
// consumer goes through a Provider: callers never read a token field
// directly, they ask for the current token and may force a refresh after an
// authorization failure.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoToken indicates no token is available and none could be fetched.
	ErrNoToken = errors.New("no auth token available")

	// ErrTokenFetch indicates the identity provider request failed.
	ErrTokenFetch = errors.New("token fetch failed")
)

// =============================================================================
// PROVIDER INTERFACE
// =============================================================================

// Provider supplies bearer tokens.
type Provider interface {
	// Token returns the current token, fetching one if none is cached.
	Token(ctx context.Context) (string, error)

	// Refresh discards any cached token and fetches a new one. Callers use
	// this exactly once after a 401 before giving up.
	Refresh(ctx context.Context) (string, error)
}

// =============================================================================
// STATIC PROVIDER
// =============================================================================

// Static is a Provider backed by a fixed token, used when the token comes
// from the environment or the settings store rather than a live identity
// provider.
type Static struct {
	token string
}

// NewStatic creates a static provider. An empty token yields ErrNoToken.
func NewStatic(token string) *Static {
	return &Static{token: token}
}

func (s *Static) Token(_ context.Context) (string, error) {
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// Refresh on a static provider returns the same token; there is nothing to
// refresh.
func (s *Static) Refresh(ctx context.Context) (string, error) {
	return s.Token(ctx)
}

// =============================================================================
// REMOTE PROVIDER
// =============================================================================

// tokenResponse is the identity provider's token endpoint payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Remote fetches tokens from an identity provider token endpoint and caches
// them until shortly before expiry.
type Remote struct {
	endpoint string
	client   *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
	// single-flight: concurrent callers share one in-progress fetch
	fetching  bool
	fetchDone chan struct{}
}

// expirySlack refreshes tokens a little early so in-flight requests do not
// race the expiry.
const expirySlack = 30 * time.Second

// NewRemote creates a provider that fetches tokens from endpoint.
func NewRemote(endpoint string, client *http.Client) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Remote{endpoint: endpoint, client: client}
}

// Token returns the cached token if still valid, otherwise fetches a new one.
func (r *Remote) Token(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.token != "" && time.Now().Before(r.expires.Add(-expirySlack)) {
		tok := r.token
		r.mu.Unlock()
		return tok, nil
	}
	r.mu.Unlock()
	return r.fetch(ctx)
}

// Refresh discards the cached token and fetches a fresh one.
func (r *Remote) Refresh(ctx context.Context) (string, error) {
	r.mu.Lock()
	r.token = ""
	r.mu.Unlock()
	return r.fetch(ctx)
}

// fetch performs the identity provider request, collapsing concurrent
// callers onto a single in-flight request.
func (r *Remote) fetch(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.fetching {
		done := r.fetchDone
		r.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		r.mu.Lock()
		tok := r.token
		r.mu.Unlock()
		if tok == "" {
			return "", ErrNoToken
		}
		return tok, nil
	}
	r.fetching = true
	r.fetchDone = make(chan struct{})
	done := r.fetchDone
	r.mu.Unlock()

	tok, exp, err := r.doFetch(ctx)

	r.mu.Lock()
	r.fetching = false
	if err == nil {
		r.token = tok
		r.expires = exp
	}
	r.mu.Unlock()
	close(done)

	if err != nil {
		return "", err
	}
	return tok, nil
}

func (r *Remote) doFetch(ctx context.Context) (string, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrTokenFetch, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrTokenFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", time.Time{}, fmt.Errorf("%w: status %d", ErrTokenFetch, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: decode: %v", ErrTokenFetch, err)
	}
	if tr.AccessToken == "" {
		return "", time.Time{}, ErrNoToken
	}

	exp := time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	if tr.ExpiresIn <= 0 {
		exp = time.Now().Add(time.Hour)
	}
	return tr.AccessToken, exp, nil
}
