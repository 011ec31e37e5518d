// MarketWire TUI - A terminal client for the MarketWire financial news platform.
//
// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/marketwire/marketwire-tui/internal/api"
	"github.com/marketwire/marketwire-tui/internal/auth"
	"github.com/marketwire/marketwire-tui/internal/chat"
	"github.com/marketwire/marketwire-tui/internal/config"
	"github.com/marketwire/marketwire-tui/internal/market"
	"github.com/marketwire/marketwire-tui/internal/session"
	"github.com/marketwire/marketwire-tui/internal/settings"
	"github.com/marketwire/marketwire-tui/internal/storage"
	uichat "github.com/marketwire/marketwire-tui/internal/ui/chat"
	"github.com/marketwire/marketwire-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		modelFlag   = flag.String("model", "", "analysis model override")
		langFlag    = flag.String("lang", "", "response language override (e.g. en, es, th, zh)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("marketwire %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	articleID := flag.Arg(0)
	if articleID == "" {
		usage()
		os.Exit(2)
	}

	if err := run(articleID, *modelFlag, *langFlag); err != nil {
		fmt.Fprintf(os.Stderr, "marketwire: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: marketwire [flags] <article-id>

Opens the article chat with live market sentiment and AI analysis.

Flags:
`)
	flag.PrintDefaults()
}

func run(articleID, modelOverride, langOverride string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if modelOverride != "" {
		cfg.DefaultModel = modelOverride
	}
	if langOverride != "" {
		cfg.Language = langOverride
	}

	dir, err := config.Dir()
	if err != nil {
		return err
	}

	// Settings persist the small user preferences the server never sees.
	store, err := settings.Open(filepath.Join(dir, "settings.toml"))
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	watcher, err := settings.Watch(store)
	if err == nil {
		defer watcher.Close()
	}

	tokens := buildTokenProvider(cfg, store)
	client := api.NewClient(cfg.API.BaseURL, cfg.API.LegacyBaseURL, tokens)

	userID := uuid.NewString()
	sessions := session.NewManager(client, userID)

	// Offline interactions queue in sqlite and drain on the next launch.
	var recorder *storage.Recorder
	queue, err := storage.OpenQueue(filepath.Join(dir, "interactions.db"))
	if err == nil {
		defer queue.Close()
		recorder = storage.NewRecorder(client, queue)
	}

	backoff := chat.Backoff{
		Base:        time.Duration(cfg.Chat.ReconnectBaseMs) * time.Millisecond,
		Cap:         30 * time.Second,
		Jitter:      100 * time.Millisecond,
		MaxAttempts: cfg.Chat.ReconnectMaxAttempts,
	}
	conn := chat.New(cfg.API.WSURL, tokens, userID, backoff)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connect chat: %w", err)
	}
	defer conn.Close()

	if err := conn.JoinArticle(articleID); err != nil {
		return fmt.Errorf("join article: %w", err)
	}
	if err := conn.SubscribeSentiment(); err != nil {
		return fmt.Errorf("subscribe sentiment: %w", err)
	}

	quotes := market.NewQuotes(client)
	poller := market.NewPoller(quotes, cfg.Market.Tickers,
		time.Duration(cfg.Market.PollIntervalSecs)*time.Second)
	poller.Start(ctx)

	theme := styles.New(store.Theme(cfg.UI.Theme))
	view := uichat.New(uichat.Deps{
		Client:       client,
		Conn:         conn,
		Streamer:     api.NewStreamer(client),
		Sessions:     sessions,
		Recorder:     recorder,
		Poller:       poller,
		Settings:     store,
		ArticleID:    articleID,
		DefaultModel: cfg.DefaultModel,
		Language:     store.PreferredLanguage(cfg.Language),
		AutoGenerate: cfg.Chat.AutoGenerate,
		TypingIdle:   time.Duration(cfg.Chat.TypingIdleMs) * time.Millisecond,
	}, theme)

	program := tea.NewProgram(view, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// buildTokenProvider picks the auth source. A configured token endpoint
// always wins: it is the only provider that can answer a 401 with a fresh
// token. Static tokens from the environment or the settings store are
// fallbacks for when no endpoint is configured.
func buildTokenProvider(cfg *config.Config, store *settings.Store) auth.Provider {
	if cfg.API.AuthURL != "" {
		return auth.NewRemote(cfg.API.AuthURL, nil)
	}
	if token := os.Getenv("MARKETWIRE_TOKEN"); token != "" {
		return auth.NewStatic(token)
	}
	return auth.NewStatic(store.AuthToken())
}
