// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"
)

// =============================================================================
// TYPING DEBOUNCE
// =============================================================================

// Notifier sends typing signals over a transport.
type Notifier interface {
	SendTyping(typing bool) error
}

// TypingDebouncer converts raw keystrokes into at most one typing-start
// signal, followed by a typing-stop after the keyboard goes idle. Keystrokes
// while already typing only push the stop timer out; they never resend the
// start signal.
type TypingDebouncer struct {
	notifier Notifier
	idle     time.Duration

	mu     sync.Mutex
	typing bool
	timer  *time.Timer
}

// NewTypingDebouncer creates a debouncer that fires typing-stop after idle
// with no keystrokes.
func NewTypingDebouncer(notifier Notifier, idle time.Duration) *TypingDebouncer {
	return &TypingDebouncer{notifier: notifier, idle: idle}
}

// Keystroke records one keystroke.
func (d *TypingDebouncer) Keystroke() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.typing {
		d.typing = true
		// Send errors are ignored; a lost typing signal is cosmetic.
		_ = d.notifier.SendTyping(true)
	}

	if d.timer == nil {
		d.timer = time.AfterFunc(d.idle, d.stop)
	} else {
		d.timer.Reset(d.idle)
	}
}

// Flush immediately ends the typing state, used when a message is sent.
func (d *TypingDebouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	wasTyping := d.typing
	d.typing = false
	d.mu.Unlock()

	if wasTyping {
		_ = d.notifier.SendTyping(false)
	}
}

func (d *TypingDebouncer) stop() {
	d.mu.Lock()
	wasTyping := d.typing
	d.typing = false
	d.timer = nil
	d.mu.Unlock()

	if wasTyping {
		_ = d.notifier.SendTyping(false)
	}
}
