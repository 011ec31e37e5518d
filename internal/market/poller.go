// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package market

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/marketwire/marketwire-tui/internal/model"
)

// =============================================================================
// QUOTE POLLER
// =============================================================================

// Update is one poll result pushed to the UI.
type Update struct {
	Quotes []*model.Quote
	Err    error
}

// Poller refreshes quotes on a fixed interval. A rate limiter backstops the
// interval so a misconfigured or clock-skewed client can never hammer the
// quote proxy faster than one batch per second.
type Poller struct {
	quotes   *Quotes
	tickers  []string
	interval time.Duration
	limiter  *rate.Limiter
	updates  chan Update
	cancel   context.CancelFunc
}

// NewPoller creates a poller for the given symbols.
func NewPoller(quotes *Quotes, tickers []string, interval time.Duration) *Poller {
	if interval < time.Second {
		interval = time.Second
	}
	return &Poller{
		quotes:   quotes,
		tickers:  tickers,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		updates:  make(chan Update, 4),
	}
}

// Updates returns the update channel. Closed after Stop.
func (p *Poller) Updates() <-chan Update {
	return p.updates
}

// Start begins polling. The first poll fires immediately.
func (p *Poller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.loop(ctx)
}

// Stop ends polling and closes the updates channel.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.updates)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}

	var quotes []*model.Quote
	var err error
	if len(p.tickers) == 0 {
		// No configured symbols: show the broad market snapshot instead.
		quotes, err = p.quotes.Overview(ctx)
	} else {
		quotes, err = p.quotes.Tickers(ctx, p.tickers)
	}
	if ctx.Err() != nil {
		return
	}

	select {
	case p.updates <- Update{Quotes: quotes, Err: err}:
	default:
		// UI is behind; the next poll supersedes this one anyway.
	}
}
