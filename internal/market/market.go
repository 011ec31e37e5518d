// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package market fetches real-time quotes for the ticker strip.
package market

import (
	"context"
	"fmt"
	"net/url"

	"github.com/marketwire/marketwire-tui/internal/api"
	"github.com/marketwire/marketwire-tui/internal/model"
)

// =============================================================================
// QUOTES
// =============================================================================

// Quotes fetches quote data through the platform's market data proxy.
type Quotes struct {
	client *api.Client
}

// NewQuotes creates a quotes client.
func NewQuotes(client *api.Client) *Quotes {
	return &Quotes{client: client}
}

// Ticker fetches the latest quote for one symbol.
func (q *Quotes) Ticker(ctx context.Context, ticker string) (*model.Quote, error) {
	var quote model.Quote
	path := fmt.Sprintf("/api/polygon/ticker/%s", url.PathEscape(ticker))
	if err := q.client.Get(ctx, path, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// Overview fetches the broad market snapshot shown before any tickers are
// configured.
func (q *Quotes) Overview(ctx context.Context) ([]*model.Quote, error) {
	var quotes []*model.Quote
	if err := q.client.Get(ctx, "/api/market-data", &quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}

// Tickers fetches quotes for several symbols. Partial failures skip the
// failing symbol rather than abort the batch; the strip shows stale data in
// preference to nothing.
func (q *Quotes) Tickers(ctx context.Context, tickers []string) ([]*model.Quote, error) {
	quotes := make([]*model.Quote, 0, len(tickers))
	var lastErr error
	for _, t := range tickers {
		quote, err := q.Ticker(ctx, t)
		if err != nil {
			lastErr = err
			continue
		}
		quotes = append(quotes, quote)
	}
	if len(quotes) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return quotes, nil
}
