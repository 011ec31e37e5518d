// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"math/rand"
	"time"
)

// =============================================================================
// RECONNECT BACKOFF
// =============================================================================

// Backoff computes reconnection delays: exponential growth from Base with a
// small random jitter so simultaneously disconnected clients do not stampede
// the server.
type Backoff struct {
	// Base is the delay before the first retry.
	Base time.Duration
	// Cap bounds the exponential growth.
	Cap time.Duration
	// Jitter is the upper bound of the uniform random addition.
	Jitter time.Duration
	// MaxAttempts bounds retries; 0 disables reconnection entirely.
	MaxAttempts int
}

// DefaultBackoff returns the standard reconnect policy.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        3 * time.Second,
		Cap:         30 * time.Second,
		Jitter:      100 * time.Millisecond,
		MaxAttempts: 5,
	}
}

// Delay returns the wait before retry number attempt (1-based). The delay is
// Base doubled per attempt, capped, plus jitter in [0, Jitter).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Cap {
			d = b.Cap
			break
		}
	}
	if d > b.Cap {
		d = b.Cap
	}
	if b.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(b.Jitter)))
	}
	return d
}

// Exhausted reports whether retry number attempt exceeds the policy.
func (b Backoff) Exhausted(attempt int) bool {
	return attempt > b.MaxAttempts
}
