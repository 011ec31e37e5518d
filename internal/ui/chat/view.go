// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/marketwire/marketwire-tui/internal/model"
	"github.com/marketwire/marketwire-tui/internal/util"
)

// View renders the full chat screen.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(m.renderToasts())
	b.WriteString(m.renderSuggestions())
	b.WriteString(m.theme.InputPrompt.Render("> "))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

// renderHeader shows the article, connection dot, participants, and the
// live quote strip.
func (m *Model) renderHeader() string {
	dot := m.theme.StatusDot(m.connState.String())
	title := m.theme.Header.Render("MarketWire · " + util.TruncateWidth(m.deps.ArticleID, 40))

	parts := []string{dot, title}
	if m.liked {
		parts = append(parts, m.theme.QuoteUp.Render("♥"))
	}
	if m.participants > 0 {
		parts = append(parts, m.theme.StatusBar.Render(fmt.Sprintf("%d watching", m.participants)))
	}
	if m.trend != nil {
		parts = append(parts, m.renderTrend())
	}

	line := strings.Join(parts, " ")
	if strip := m.renderQuoteStrip(); strip != "" {
		line += "\n" + strip
	}
	return line
}

// renderQuoteStrip renders the polled ticker quotes.
func (m *Model) renderQuoteStrip() string {
	if len(m.quotes) == 0 {
		return ""
	}
	var cells []string
	for _, q := range m.quotes {
		text := fmt.Sprintf("%s %.2f %+.2f%%", q.Ticker, q.Price, q.ChangePercent)
		switch {
		case q.Change > 0:
			cells = append(cells, m.theme.QuoteUp.Render(text))
		case q.Change < 0:
			cells = append(cells, m.theme.QuoteDown.Render(text))
		default:
			cells = append(cells, m.theme.QuoteFlat.Render(text))
		}
	}
	return m.theme.StatusBar.Render(strings.Join(cells, "  "))
}

// renderTrend renders the pushed sentiment trend.
func (m *Model) renderTrend() string {
	arrow := "→"
	style := m.theme.QuoteFlat
	switch {
	case m.trend.Overall > 0.1:
		arrow = "↑"
		style = m.theme.QuoteUp
	case m.trend.Overall < -0.1:
		arrow = "↓"
		style = m.theme.QuoteDown
	}
	return style.Render(fmt.Sprintf("sentiment %s %.2f", arrow, m.trend.Overall))
}

// renderStatusLine shows generation progress and typing indicators.
func (m *Model) renderStatusLine() string {
	var parts []string

	if m.generating {
		label := "analyzing"
		if m.progress > 0 {
			label = fmt.Sprintf("analyzing %d%%", m.progress)
		}
		parts = append(parts, m.spinner.View()+" "+m.theme.Progress.Render(label))
	}
	if m.sending {
		parts = append(parts, m.spinner.View()+" "+m.theme.Progress.Render("sending"))
	}
	if m.sess.PendingSlot() != nil && !m.generating && !m.sending {
		parts = append(parts, m.spinner.View()+" "+m.theme.Progress.Render("thinking"))
	}
	if m.typing.Active() {
		label := "someone is typing..."
		if n := m.typing.Count(); n > 1 {
			label = fmt.Sprintf("%d people are typing...", n)
		}
		parts = append(parts, m.theme.TypingIndicator.Render(label))
	}

	return m.theme.StatusBar.Render(strings.Join(parts, "  "))
}

// renderToasts stacks active toast lines.
func (m *Model) renderToasts() string {
	if len(m.toasts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range m.toasts {
		switch t.kind {
		case toastWarn:
			b.WriteString(m.theme.ToastWarn.Render(t.text))
		case toastError:
			b.WriteString(m.theme.ToastError.Render(t.text))
		default:
			b.WriteString(m.theme.ToastInfo.Render(t.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderSuggestions shows follow-up question chips after a completed answer.
func (m *Model) renderSuggestions() string {
	if len(m.suggestions) == 0 {
		return ""
	}
	var cells []string
	for _, s := range m.suggestions {
		cells = append(cells, m.theme.Suggestion.Render(util.TruncateRunes(s, 40)))
	}
	return strings.Join(cells, " ") + "\n"
}

// refreshViewport re-renders the message list into the viewport.
func (m *Model) refreshViewport() {
	if !m.ready || m.renderer == nil {
		return
	}

	var b strings.Builder
	for _, msg := range m.sess.Messages {
		b.WriteString(m.renderMessageHeader(msg))
		b.WriteString("\n")
		if msg.Processing {
			b.WriteString(m.theme.TypingIndicator.Render("..."))
		} else {
			b.WriteString(m.renderer.RenderMessage(msg))
		}
		b.WriteString("\n\n")
	}

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(b.String())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// renderMessageHeader renders the role label, timestamp, and annotations.
func (m *Model) renderMessageHeader(msg *model.ChatMessage) string {
	var label string
	switch msg.Role {
	case model.RoleUser:
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	case model.RoleAssistant:
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	default:
		label = m.theme.SystemLabel.Render(msg.Role.DisplayName())
	}

	parts := []string{label}
	if !msg.Timestamp.IsZero() {
		parts = append(parts, m.theme.Timestamp.Render(msg.Timestamp.Format("15:04")))
	}
	if msg.Sentiment != nil {
		parts = append(parts, m.renderer.RenderSentimentBadge(msg.Sentiment))
	}
	if msg.FromCache {
		parts = append(parts, m.theme.Timestamp.Render("cached"))
	}
	return strings.Join(parts, " ")
}
