// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns chat messages into styled terminal output.
//
// Rendering is pure: the same message, width, and language always produce
// the same string. Network and state concerns live elsewhere.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/marketwire/marketwire-tui/internal/model"
)

// =============================================================================
// RENDERER
// =============================================================================

// Renderer renders chat messages for terminal display.
type Renderer struct {
	markdown *glamour.TermRenderer
	width    int
	language string

	panelTitle lipgloss.Style
	panelBody  lipgloss.Style
	disclaimer lipgloss.Style
	sentiment  lipgloss.Style
}

// New creates a renderer for the given wrap width and user language.
func New(width int, lang string) *Renderer {
	if width < 20 {
		width = 20
	}

	// A failed glamour init degrades to plain text rather than erroring.
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		md = nil
	}

	return &Renderer{
		markdown: md,
		width:    width,
		language: lang,
		panelTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")),
		panelBody: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1),
		disclaimer: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("8")),
		sentiment: lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true),
	}
}

// RenderMessage renders one chat message. Assistant messages get markdown
// formatting, source panels, and the advice disclaimer; user and system
// messages render as plain wrapped text.
func (r *Renderer) RenderMessage(msg *model.ChatMessage) string {
	content := msg.GetDisplayContent()

	if msg.Role != model.RoleAssistant {
		return content
	}

	var b strings.Builder
	b.WriteString(r.renderMarkdown(content))

	// Source panels are derived from the assistant's own citations; user
	// messages never grow panels even if they contain matching text.
	if panel := r.renderSourcesPanel(content); panel != "" {
		b.WriteString("\n")
		b.WriteString(panel)
	}
	if panel := r.renderLinksPanel(content); panel != "" {
		b.WriteString("\n")
		b.WriteString(panel)
	}

	if NeedsDisclaimer(content) {
		b.WriteString("\n")
		b.WriteString(r.disclaimer.Render(Disclaimer(r.language)))
	}

	return b.String()
}

// RenderSentimentBadge renders a colored sentiment label.
func (r *Renderer) RenderSentimentBadge(s *model.Sentiment) string {
	if s == nil {
		return ""
	}
	style := r.sentiment
	switch strings.ToLower(s.Label) {
	case "bullish", "positive":
		style = style.Foreground(lipgloss.Color("10"))
	case "bearish", "negative":
		style = style.Foreground(lipgloss.Color("9"))
	default:
		style = style.Foreground(lipgloss.Color("11"))
	}
	return style.Render(fmt.Sprintf("%s %.0f%%", s.Label, s.Confidence*100))
}

// renderMarkdown renders markdown, falling back to plain text with
// highlighted code fences when the markdown renderer is unavailable.
func (r *Renderer) renderMarkdown(content string) string {
	if r.markdown == nil {
		return r.renderPlain(content)
	}
	rendered, err := r.markdown.Render(content)
	if err != nil {
		return r.renderPlain(content)
	}
	return strings.TrimRight(rendered, "\n")
}

// renderPlain passes text through untouched except for fenced code blocks,
// which still get syntax highlighting and the language badge.
func (r *Renderer) renderPlain(content string) string {
	var b strings.Builder
	var code strings.Builder
	var lang string
	inFence := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				b.WriteString(r.RenderCodeBlock(code.String(), lang))
				b.WriteString("\n")
				code.Reset()
			} else {
				lang = strings.TrimPrefix(trimmed, "```")
			}
			inFence = !inFence
			continue
		}
		if inFence {
			code.WriteString(line)
			code.WriteString("\n")
		} else {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	// An unclosed fence renders as-is rather than being dropped.
	if inFence {
		b.WriteString("```" + lang + "\n")
		b.WriteString(code.String())
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderSourcesPanel builds the "Sources Consulted" panel from inline
// citations and source tables. Empty when the message cites nothing.
func (r *Renderer) renderSourcesPanel(content string) string {
	sources := ParseSourceLines(content)
	sources = append(sources, ParseSourceTable(content)...)
	if len(sources) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(r.panelTitle.Render("Sources Consulted"))
	b.WriteString("\n")
	for _, s := range sources {
		line := fmt.Sprintf("%s: %q", s.Outlet, s.Title)
		if s.Relevance != "" {
			line += " [" + s.Relevance + "]"
		}
		if s.Date != "" {
			line += " (" + s.Date + ")"
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return r.panelBody.Width(r.width - 2).Render(strings.TrimRight(b.String(), "\n"))
}

// renderLinksPanel builds the "Direct Links" panel from bare URLs.
func (r *Renderer) renderLinksPanel(content string) string {
	urls := ExtractURLs(content)
	if len(urls) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(r.panelTitle.Render("Direct Links"))
	b.WriteString("\n")
	for _, u := range urls {
		b.WriteString(u)
		b.WriteString("\n")
	}
	return r.panelBody.Width(r.width - 2).Render(strings.TrimRight(b.String(), "\n"))
}
