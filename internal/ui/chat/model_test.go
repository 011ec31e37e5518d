// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"
	"time"
)

func TestTypingIdleOrDefault(t *testing.T) {
	if got := typingIdleOrDefault(250 * time.Millisecond); got != 250*time.Millisecond {
		t.Errorf("configured idle = %v, want 250ms", got)
	}
	if got := typingIdleOrDefault(0); got != time.Second {
		t.Errorf("unset idle = %v, want the 1s default", got)
	}
	if got := typingIdleOrDefault(-time.Second); got != time.Second {
		t.Errorf("negative idle = %v, want the 1s default", got)
	}
}
