// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marketwire/marketwire-tui/internal/api"
	"github.com/marketwire/marketwire-tui/internal/chat"
	"github.com/marketwire/marketwire-tui/internal/market"
	"github.com/marketwire/marketwire-tui/internal/model"
	"github.com/marketwire/marketwire-tui/internal/render"
	"github.com/marketwire/marketwire-tui/internal/session"
	"github.com/marketwire/marketwire-tui/internal/settings"
	"github.com/marketwire/marketwire-tui/internal/storage"
	"github.com/marketwire/marketwire-tui/internal/ui/styles"
)

// =============================================================================
// TOASTS
// =============================================================================

// toastKind selects the toast border color.
type toastKind int

const (
	toastInfo toastKind = iota
	toastWarn
	toastError
)

// toast is a transient notification line.
type toast struct {
	id   int
	kind toastKind
	text string
}

// toastTTL is how long a toast stays visible.
const toastTTL = 4 * time.Second

type toastExpireMsg struct {
	id int
}

// =============================================================================
// MODEL
// =============================================================================

// Deps bundles the subsystems the chat view drives.
type Deps struct {
	Client   *api.Client
	Conn     *chat.Conn
	Streamer *api.Streamer
	Sessions *session.Manager
	Recorder *storage.Recorder
	Poller   *market.Poller
	Settings *settings.Store

	ArticleID    string
	DefaultModel string
	Language     string
	AutoGenerate bool

	// TypingIdle is how long the keyboard must be quiet before the typing
	// signal clears. Zero means the one second default.
	TypingIdle time.Duration
}

// Model is the Bubble Tea model for an article chat.
type Model struct {
	deps  Deps
	theme *styles.Theme

	// Components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	renderer *render.Renderer

	// Chat state
	sess         *model.ChatSession
	typing       *chat.TypingSet
	debouncer    *chat.TypingDebouncer
	participants int
	connState    chat.ConnState
	trend        *model.SentimentTrend
	suggestions  []string

	// Send state. One message send is in flight at a time.
	sending bool

	// Streaming state
	streamBuf     *StreamingBuffer
	streamingMsg  *model.ChatMessage
	stream        *api.AnalysisStream
	streamRelease func()
	progress      int
	generating    bool

	// Market state
	quotes []*model.Quote

	// Toasts
	toasts  []toast
	toastID int

	liked bool

	width       int
	height      int
	ready       bool
	autoStarted bool
}

// New creates the chat view model.
func New(deps Deps, theme *styles.Theme) *Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about this article..."
	ta.CharLimit = 2000
	ta.SetHeight(2)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := &Model{
		deps:      deps,
		theme:     theme,
		input:     ta,
		spinner:   sp,
		typing:    chat.NewTypingSet(),
		streamBuf: NewStreamingBuffer(),
		connState: chat.StateConnecting,
		sess:      deps.Sessions.Session(deps.ArticleID),
	}
	m.debouncer = chat.NewTypingDebouncer(deps.Conn, typingIdleOrDefault(deps.TypingIdle))
	return m
}

// typingIdleOrDefault guards against an unset or nonsense idle window from
// config.
func typingIdleOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	return d
}

// Init starts the event pumps.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		waitChatEvent(m.deps.Conn),
		loadHistoryCmd(m.deps.Sessions, m.deps.ArticleID),
		loadSuggestionsCmd(m.deps),
		recordViewCmd(m.deps.Recorder, m.deps.ArticleID),
		syncQueueCmd(m.deps.Recorder),
	}
	if m.deps.Poller != nil {
		cmds = append(cmds, waitMarketUpdate(m.deps.Poller))
	}
	return tea.Batch(cmds...)
}

// pushToast queues a transient notification.
func (m *Model) pushToast(kind toastKind, text string) tea.Cmd {
	m.toastID++
	id := m.toastID
	m.toasts = append(m.toasts, toast{id: id, kind: kind, text: text})
	return tea.Tick(toastTTL, func(time.Time) tea.Msg {
		return toastExpireMsg{id: id}
	})
}

func (m *Model) dropToast(id int) {
	kept := m.toasts[:0]
	for _, t := range m.toasts {
		if t.id != id {
			kept = append(kept, t)
		}
	}
	m.toasts = kept
}

// startAnalysis opens a streaming analysis if no identical request is in
// flight. Duplicate triggers are ignored rather than queued.
func (m *Model) startAnalysis(forceRefresh bool) tea.Cmd {
	modelName := m.deps.Settings.DefaultModel(m.deps.DefaultModel)
	release, ok := m.deps.Sessions.BeginAnalysis(m.deps.ArticleID, modelName)
	if !ok {
		return nil
	}

	m.generating = true
	m.progress = 0
	gen := m.deps.Sessions.Generation(m.deps.ArticleID)

	deps := m.deps
	return func() tea.Msg {
		stream, err := deps.Streamer.Start(context.Background(), deps.ArticleID, api.AnalysisRequest{
			Model:        modelName,
			Language:     deps.Language,
			ForceRefresh: forceRefresh,
		})
		if err != nil {
			release()
			return analysisOpenedMsg{gen: gen, err: err}
		}
		return analysisOpenedMsg{gen: gen, stream: stream, release: release}
	}
}
