// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marketwire/marketwire-tui/internal/api"
	"github.com/marketwire/marketwire-tui/internal/auth"
)

func newQuotes(t *testing.T, handler http.HandlerFunc) *Quotes {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := api.NewClient(srv.URL, "", auth.NewStatic("tok"), api.WithHTTPClient(srv.Client()))
	return NewQuotes(client)
}

func quoteHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/market-data" {
		fmt.Fprint(w, `[{"ticker": "SPX", "price": 5100.5, "change": -12.0, "change_percent": -0.23}]`)
		return
	}
	ticker := strings.TrimPrefix(r.URL.Path, "/api/polygon/ticker/")
	if ticker == "FAIL" {
		http.Error(w, "no such ticker", http.StatusBadRequest)
		return
	}
	fmt.Fprintf(w, `{"ticker": %q, "price": 512.3, "change": 1.2, "change_percent": 0.23, "volume": 1000}`, ticker)
}

func TestTicker(t *testing.T) {
	q := newQuotes(t, quoteHandler)

	quote, err := q.Ticker(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("Ticker: %v", err)
	}
	if quote.Ticker != "SPY" || quote.Price != 512.3 {
		t.Errorf("quote = %+v", quote)
	}
}

func TestTickers_PartialFailureSkips(t *testing.T) {
	q := newQuotes(t, quoteHandler)

	quotes, err := q.Tickers(context.Background(), []string{"SPY", "FAIL", "QQQ"})
	if err != nil {
		t.Fatalf("Tickers: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("quotes = %d, want 2", len(quotes))
	}
	if quotes[0].Ticker != "SPY" || quotes[1].Ticker != "QQQ" {
		t.Errorf("quotes = %v, %v", quotes[0].Ticker, quotes[1].Ticker)
	}
}

func TestTickers_AllFailuresSurfaceError(t *testing.T) {
	q := newQuotes(t, quoteHandler)

	if _, err := q.Tickers(context.Background(), []string{"FAIL"}); err == nil {
		t.Fatal("expected error when every ticker fails")
	}
}

func TestOverview(t *testing.T) {
	q := newQuotes(t, quoteHandler)

	quotes, err := q.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if len(quotes) != 1 || quotes[0].Ticker != "SPX" {
		t.Errorf("quotes = %+v", quotes)
	}
}

func TestPoller_DeliversUpdates(t *testing.T) {
	q := newQuotes(t, quoteHandler)

	p := NewPoller(q, []string{"SPY"}, time.Second)
	p.Start(context.Background())
	defer p.Stop()

	select {
	case update := <-p.Updates():
		if update.Err != nil {
			t.Fatalf("update err: %v", update.Err)
		}
		if len(update.Quotes) != 1 || update.Quotes[0].Ticker != "SPY" {
			t.Errorf("update = %+v", update)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no update delivered")
	}
}

func TestPoller_StopClosesUpdates(t *testing.T) {
	q := newQuotes(t, quoteHandler)

	p := NewPoller(q, []string{"SPY"}, time.Second)
	p.Start(context.Background())
	p.Stop()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-p.Updates():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("updates channel did not close")
		}
	}
}
