// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marketwire/marketwire-tui/internal/chat"
	"github.com/marketwire/marketwire-tui/internal/model"
	"github.com/marketwire/marketwire-tui/internal/render"
)

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.renderer = render.New(msg.Width-2, m.deps.Language)
		headerHeight := 3
		inputHeight := 4
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - inputHeight
		}
		m.input.SetWidth(msg.Width - 4)
		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, m.teardown()
		case "ctrl+r":
			// Regenerate the analysis, bypassing the server cache.
			if cmd := m.startAnalysis(true); cmd != nil {
				cmds = append(cmds, cmd)
			}
		case "ctrl+l":
			if cmd := toggleLikeCmd(m.deps.Recorder, m.deps.ArticleID); cmd != nil {
				cmds = append(cmds, cmd)
			}
		case "ctrl+p":
			// Panel discussion shares the generation slot with analysis.
			if !m.generating {
				m.generating = true
				gen := m.deps.Sessions.Generation(m.deps.ArticleID)
				cmds = append(cmds, generatePanelCmd(m.deps, gen))
			}
		case "ctrl+x":
			cmds = append(cmds, clearCacheCmd(m.deps))
		case "enter":
			if cmd := m.submit(); cmd != nil {
				cmds = append(cmds, cmd)
			}
		case "esc":
			m.deps.Sessions.EndSession(m.deps.ArticleID)
			m.deps.Streamer.Stop()
			m.sess = m.deps.Sessions.Session(m.deps.ArticleID)
			m.suggestions = nil
			m.refreshViewport()
		default:
			// Printable input counts as typing for the room.
			if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace || msg.Type == tea.KeyBackspace {
				m.debouncer.Keystroke()
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case ChatEventMsg:
		cmds = append(cmds, m.handleChatEvent(msg.Event)...)
		cmds = append(cmds, waitChatEvent(m.deps.Conn))

	case chatClosedMsg:
		m.connState = chat.StateDisconnected

	case analysisOpenedMsg:
		if msg.err != nil {
			// Streaming endpoint unavailable; fall back to the blocking
			// request/response analysis.
			cmds = append(cmds, generateAnalysisCmd(m.deps, m.deps.Settings.DefaultModel(m.deps.DefaultModel), msg.gen))
			break
		}
		if !m.deps.Sessions.IsCurrent(m.deps.ArticleID, msg.gen) {
			// Session ended while the stream was opening.
			msg.stream.Cancel()
			msg.release()
			break
		}
		m.stream = msg.stream
		m.streamRelease = msg.release
		m.streamBuf.Reset()
		m.streamingMsg = model.NewStreamingMessage()
		m.sess.Append(m.streamingMsg)
		cmds = append(cmds, waitStreamEvent(msg.stream, msg.gen), streamTickCmd())

	case StreamEventMsg:
		cmds = append(cmds, m.handleStreamEvent(msg)...)

	case streamClosedMsg:
		m.finishStream(msg.Gen)

	case analysisResultMsg:
		m.generating = false
		if !m.deps.Sessions.IsCurrent(m.deps.ArticleID, msg.gen) {
			break
		}
		if msg.err != nil {
			cmds = append(cmds, m.pushToast(toastError, fmt.Sprintf("analysis failed: %v", msg.err)))
			break
		}
		m.appendAnalysis(msg.result)
		if msg.result.FromCache {
			cmds = append(cmds, m.pushToast(toastInfo, "served from cache"))
		}
		requested := m.deps.Settings.DefaultModel(m.deps.DefaultModel)
		if msg.result.Performance.Model != "" && msg.result.Performance.Model != requested {
			cmds = append(cmds, m.pushToast(toastWarn,
				fmt.Sprintf("using fallback model %s", msg.result.Performance.Model)))
		}
		m.refreshViewport()

	case StreamTickMsg:
		if m.streamingMsg != nil {
			if content, ok := m.streamBuf.Flush(); ok {
				m.streamingMsg.AppendToken(content)
				m.refreshViewport()
			}
			cmds = append(cmds, streamTickCmd())
		}

	case MarketUpdateMsg:
		if msg.Update.Err == nil {
			m.quotes = msg.Update.Quotes
		}
		cmds = append(cmds, waitMarketUpdate(m.deps.Poller))

	case messageSentMsg:
		m.sending = false
		if msg.err != nil {
			// The assistant never saw the question; the placeholder would
			// spin forever.
			m.sess.DropPending()
			m.refreshViewport()
			cmds = append(cmds, m.pushToast(toastError, fmt.Sprintf("send failed: %v", msg.err)))
		}

	case historyLoadedMsg:
		if msg.err == nil && msg.sess != nil {
			m.sess = msg.sess
			m.refreshViewport()
		}

	case suggestionsLoadedMsg:
		// Starter questions only fill an empty suggestion row; live
		// chat:complete suggestions always win.
		if msg.err == nil && len(m.suggestions) == 0 {
			m.suggestions = msg.suggestions
		}

	case interactionMsg:
		if msg.err != nil {
			cmds = append(cmds, m.pushToast(toastError, "interaction not saved"))
		} else if msg.queued {
			cmds = append(cmds, m.pushToast(toastWarn, "offline: interaction queued"))
		}

	case panelResultMsg:
		m.generating = false
		if !m.deps.Sessions.IsCurrent(m.deps.ArticleID, msg.gen) {
			break
		}
		if msg.err != nil {
			cmds = append(cmds, m.pushToast(toastError, fmt.Sprintf("panel discussion failed: %v", msg.err)))
			break
		}
		for _, take := range msg.result.Agents {
			pm := model.NewMessage(model.RoleAssistant,
				fmt.Sprintf("**%s** (%s)\n\n%s", take.Agent, take.Stance, take.Content))
			pm.Model = msg.result.Performance.Model
			m.sess.Append(pm)
		}
		if msg.result.FromCache {
			cmds = append(cmds, m.pushToast(toastInfo, "served from cache"))
		}
		m.refreshViewport()

	case cacheClearedMsg:
		if msg.err != nil {
			cmds = append(cmds, m.pushToast(toastError, "cache clear failed"))
		} else {
			cmds = append(cmds, m.pushToast(toastInfo, "analysis cache cleared"))
		}

	case likeToggledMsg:
		switch {
		case msg.err != nil:
			cmds = append(cmds, m.pushToast(toastError, "like not saved"))
		case msg.pending && msg.liked:
			m.liked = msg.liked
			cmds = append(cmds, m.pushToast(toastWarn, "liked (offline, will sync)"))
		case msg.pending:
			m.liked = msg.liked
			cmds = append(cmds, m.pushToast(toastWarn, "unliked (offline, will sync)"))
		case msg.liked:
			m.liked = true
			cmds = append(cmds, m.pushToast(toastInfo, "article liked"))
		default:
			m.liked = false
			cmds = append(cmds, m.pushToast(toastInfo, "article unliked"))
		}

	case queueSyncedMsg:
		if msg.err == nil && msg.synced > 0 {
			cmds = append(cmds, m.pushToast(toastInfo, fmt.Sprintf("synced %d queued interactions", msg.synced)))
		}

	case toastExpireMsg:
		m.dropToast(msg.id)

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

// submit sends the composed message. One send is in flight at a time; enter
// while a send is pending is ignored, not queued.
func (m *Model) submit() tea.Cmd {
	content := strings.TrimSpace(m.input.Value())
	if content == "" || m.sending {
		return nil
	}
	m.input.Reset()
	m.debouncer.Flush()
	m.sending = true

	// Optimistic append; the server echo of this message is dropped.
	m.sess.Append(model.NewUserMessage(content))
	m.sess.Append(model.NewProcessingMessage())
	m.suggestions = nil
	m.refreshViewport()

	return sendMessageCmd(m.deps.Sessions, m.deps.ArticleID, content)
}

// handleChatEvent applies one connection event to the view state.
func (m *Model) handleChatEvent(ev chat.Event) []tea.Cmd {
	var cmds []tea.Cmd

	switch ev := ev.(type) {
	case chat.InitialDataEvent:
		if len(m.sess.Messages) == 0 && len(ev.Messages) > 0 {
			m.sess.Messages = append(m.sess.Messages, ev.Messages...)
			m.refreshViewport()
		}
		if ev.Participants > 0 {
			m.participants = ev.Participants
		}
		// Auto-generation waits for the room snapshot so an existing
		// server-side analysis is not regenerated on every open.
		if m.deps.AutoGenerate && !ev.HasAnalysis && !m.autoStarted {
			m.autoStarted = true
			if cmd := m.startAnalysis(false); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}

	case chat.MessageEvent:
		m.sess.Append(ev.Message)
		m.refreshViewport()

	case chat.AIResponseEvent:
		m.sess.ResolveOrAppend(ev.Content, ev.Sentiment)
		m.refreshViewport()

	case chat.ProcessingEvent:
		if m.sess.PendingSlot() == nil {
			m.sess.Append(model.NewProcessingMessage())
			m.refreshViewport()
		}

	case chat.CompleteEvent:
		m.suggestions = ev.Suggestions
		m.sess.Suggestions = ev.Suggestions
		if ev.ThreadID != "" {
			m.sess.ThreadID = ev.ThreadID
		}

	case chat.TypingEvent:
		m.typing.Apply(ev.UserID, ev.Typing)

	case chat.SentimentUpdateEvent:
		trend := ev.Trend
		m.trend = &trend

	case chat.AlertEvent:
		cmds = append(cmds, m.pushToast(toastWarn, ev.Alert.Message))

	case chat.UserLeftEvent:
		m.typing.Remove(ev.UserID)

	case chat.ParticipantsEvent:
		m.participants = ev.Count

	case chat.StatusEvent:
		prev := m.connState
		m.connState = ev.State
		if ev.State == chat.StateConnected && prev == chat.StateReconnecting {
			cmds = append(cmds, m.pushToast(toastInfo, "reconnected"))
		}
		if ev.State == chat.StateDisconnected {
			cmds = append(cmds, m.pushToast(toastError, "connection lost"))
		}
	}
	return cmds
}

// handleStreamEvent applies one analysis stream event.
func (m *Model) handleStreamEvent(msg StreamEventMsg) []tea.Cmd {
	var cmds []tea.Cmd

	// Stale events from a superseded generation are dropped whole.
	if !m.deps.Sessions.IsCurrent(m.deps.ArticleID, msg.Gen) {
		return cmds
	}

	ev := msg.Event
	switch ev.Type {
	case model.EventStart:
		requested := m.deps.Settings.DefaultModel(m.deps.DefaultModel)
		if ev.Model != "" && ev.Model != requested {
			cmds = append(cmds, m.pushToast(toastWarn,
				fmt.Sprintf("using fallback model %s", ev.Model)))
		}

	case model.EventContent:
		m.streamBuf.Write(ev.Content)

	case model.EventProgress:
		m.progress = ev.Progress

	case model.EventComplete:
		m.finishStream(msg.Gen)
		return cmds

	case model.EventError:
		text := ev.Message
		if text == "" && ev.Err != nil {
			text = ev.Err.Error()
		}
		cmds = append(cmds, m.pushToast(toastError, "analysis error: "+text))
		m.finishStream(msg.Gen)
		return cmds
	}

	cmds = append(cmds, waitStreamEvent(m.stream, msg.Gen))
	return cmds
}

// finishStream flushes remaining tokens and finalizes the streaming message.
func (m *Model) finishStream(gen uint64) {
	if m.streamingMsg != nil {
		if content, ok := m.streamBuf.ForceFlush(); ok {
			m.streamingMsg.AppendToken(content)
		}
		m.streamingMsg.FinalizeStream()
		m.streamingMsg = nil
		m.refreshViewport()
	}
	m.stream = nil
	m.generating = false
	m.progress = 0
	if m.streamRelease != nil {
		m.streamRelease()
		m.streamRelease = nil
	}
}

// appendAnalysis renders a non-streamed analysis result into the session.
func (m *Model) appendAnalysis(result *model.AnalysisResult) {
	switch result.Kind {
	case model.AnalysisAgents:
		for _, take := range result.Agents {
			msg := model.NewMessage(model.RoleAssistant,
				fmt.Sprintf("**%s** (%s)\n\n%s", take.Agent, take.Stance, take.Content))
			msg.Model = result.Performance.Model
			m.sess.Append(msg)
		}
	default:
		msg := model.NewMessage(model.RoleAssistant, result.Content)
		msg.Model = result.Performance.Model
		msg.FromCache = result.FromCache
		msg.ResponseTime = result.Performance.ResponseTime
		m.sess.Append(msg)
	}
}

// teardown leaves the room and stops background work before quitting.
func (m *Model) teardown() tea.Cmd {
	m.deps.Streamer.Stop()
	m.deps.Conn.LeaveArticle()
	m.deps.Conn.Close()
	if m.deps.Poller != nil {
		m.deps.Poller.Stop()
	}
	return tea.Quit
}
