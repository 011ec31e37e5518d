// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marketwire/marketwire-tui/internal/api"
	"github.com/marketwire/marketwire-tui/internal/chat"
	"github.com/marketwire/marketwire-tui/internal/market"
	"github.com/marketwire/marketwire-tui/internal/model"
	"github.com/marketwire/marketwire-tui/internal/session"
	"github.com/marketwire/marketwire-tui/internal/storage"
)

// =============================================================================
// MESSAGES
// =============================================================================

// ChatEventMsg wraps one connection event.
type ChatEventMsg struct {
	Event chat.Event
}

// chatClosedMsg signals the connection event channel closed.
type chatClosedMsg struct{}

// StreamEventMsg wraps one streaming analysis event.
type StreamEventMsg struct {
	Event model.StreamingEvent
	Gen   uint64
}

// streamClosedMsg signals the analysis stream ended.
type streamClosedMsg struct {
	Gen uint64
}

// analysisOpenedMsg reports the result of opening an analysis stream.
type analysisOpenedMsg struct {
	stream  *api.AnalysisStream
	release func()
	gen     uint64
	err     error
}

// analysisResultMsg carries a request/response analysis result.
type analysisResultMsg struct {
	result *model.AnalysisResult
	gen    uint64
	err    error
}

// MarketUpdateMsg wraps one quote poll result.
type MarketUpdateMsg struct {
	Update market.Update
}

// messageSentMsg reports the outcome of one message POST.
type messageSentMsg struct {
	err error
}

// historyLoadedMsg reports server history fetch.
type historyLoadedMsg struct {
	sess *model.ChatSession
	err  error
}

// interactionMsg reports an interaction delivery outcome.
type interactionMsg struct {
	queued bool
	err    error
}

// queueSyncedMsg reports a background queue drain.
type queueSyncedMsg struct {
	synced int
	err    error
}

// likeToggledMsg reports the new local like state after a toggle.
type likeToggledMsg struct {
	liked   bool
	pending bool
	err     error
}

// panelResultMsg carries a generated panel discussion.
type panelResultMsg struct {
	result *model.PanelResult
	gen    uint64
	err    error
}

// cacheClearedMsg reports a cache invalidation request.
type cacheClearedMsg struct {
	err error
}

// suggestionsLoadedMsg carries starter questions fetched on open.
type suggestionsLoadedMsg struct {
	suggestions []string
	err         error
}

// =============================================================================
// COMMANDS
// =============================================================================

// waitChatEvent blocks for the next connection event.
func waitChatEvent(conn *chat.Conn) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-conn.Events()
		if !ok {
			return chatClosedMsg{}
		}
		return ChatEventMsg{Event: ev}
	}
}

// waitStreamEvent blocks for the next analysis stream event.
func waitStreamEvent(stream *api.AnalysisStream, gen uint64) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-stream.Events()
		if !ok {
			return streamClosedMsg{Gen: gen}
		}
		return StreamEventMsg{Event: ev, Gen: gen}
	}
}

// waitMarketUpdate blocks for the next quote batch.
func waitMarketUpdate(poller *market.Poller) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-poller.Updates()
		if !ok {
			return nil
		}
		return MarketUpdateMsg{Update: update}
	}
}

// generateAnalysisCmd runs the blocking analysis request, used when the
// streaming endpoint is unavailable.
func generateAnalysisCmd(deps Deps, modelName string, gen uint64) tea.Cmd {
	return func() tea.Msg {
		result, err := deps.Client.GenerateAnalysis(context.Background(), deps.ArticleID, api.AnalysisRequest{
			Model:    modelName,
			Language: deps.Language,
		})
		return analysisResultMsg{result: result, gen: gen, err: err}
	}
}

// sendMessageCmd posts one user message, creating the server chat session on
// the first send for the article.
func sendMessageCmd(sessions *session.Manager, articleID, content string) tea.Cmd {
	return func() tea.Msg {
		return messageSentMsg{err: sessions.SendMessage(context.Background(), articleID, content)}
	}
}

// loadSuggestionsCmd fetches starter questions for a fresh session.
func loadSuggestionsCmd(deps Deps) tea.Cmd {
	return func() tea.Msg {
		suggestions, err := deps.Client.Suggestions(context.Background(), deps.ArticleID)
		return suggestionsLoadedMsg{suggestions: suggestions, err: err}
	}
}

// loadHistoryCmd fetches server-held chat history.
func loadHistoryCmd(sessions *session.Manager, articleID string) tea.Cmd {
	return func() tea.Msg {
		sess, err := sessions.LoadHistory(context.Background(), articleID)
		return historyLoadedMsg{sess: sess, err: err}
	}
}

// recordViewCmd records the article-open interaction.
func recordViewCmd(recorder *storage.Recorder, articleID string) tea.Cmd {
	if recorder == nil {
		return nil
	}
	return func() tea.Msg {
		queued, err := recorder.Record(context.Background(), api.Interaction{
			ArticleID: articleID,
			Kind:      "view",
		})
		return interactionMsg{queued: queued, err: err}
	}
}

// generatePanelCmd requests a multi-agent panel discussion.
func generatePanelCmd(deps Deps, gen uint64) tea.Cmd {
	return func() tea.Msg {
		result, err := deps.Client.GeneratePanelDiscussion(context.Background(), deps.ArticleID, api.AnalysisRequest{
			Model:    deps.Settings.DefaultModel(deps.DefaultModel),
			Language: deps.Language,
		})
		return panelResultMsg{result: result, gen: gen, err: err}
	}
}

// clearCacheCmd invalidates the server-side cached analysis for the article.
func clearCacheCmd(deps Deps) tea.Cmd {
	return func() tea.Msg {
		return cacheClearedMsg{err: deps.Client.ClearArticleCache(context.Background(), deps.ArticleID)}
	}
}

// toggleLikeCmd flips the like state for the open article.
func toggleLikeCmd(recorder *storage.Recorder, articleID string) tea.Cmd {
	if recorder == nil {
		return nil
	}
	return func() tea.Msg {
		liked, pending, err := recorder.ToggleLike(context.Background(), articleID)
		return likeToggledMsg{liked: liked, pending: pending, err: err}
	}
}

// syncQueueCmd drains previously queued interactions.
func syncQueueCmd(recorder *storage.Recorder) tea.Cmd {
	if recorder == nil {
		return nil
	}
	return func() tea.Msg {
		synced, err := recorder.Sync(context.Background())
		return queueSyncedMsg{synced: synced, err: err}
	}
}
