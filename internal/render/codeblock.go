// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// CODE BLOCK HIGHLIGHTING
// =============================================================================

// Analyst responses occasionally include fenced code blocks, typically JSON
// payloads or formula snippets. These are highlighted outside the markdown
// pipeline so they can carry the language badge.

// HighlightCode applies terminal syntax highlighting. The original code is
// returned unchanged when the language is unknown or highlighting fails.
func HighlightCode(code, lang string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return code
	}

	style := chromaStyles.Get("monokai")
	formatter := formatters.Get("terminal256")
	if style == nil || formatter == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var b strings.Builder
	if err := formatter.Format(&b, style, iterator); err != nil {
		return code
	}
	return b.String()
}

// RenderCodeBlock renders a fenced code block with a language badge and
// rounded border.
func (r *Renderer) RenderCodeBlock(code, lang string) string {
	code = strings.TrimSpace(code)
	highlighted := HighlightCode(code, lang)

	var header string
	if lang != "" {
		badge := lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Padding(0, 1).
			Bold(true).
			Render(lang)
		header = badge + "\n"
	}

	return r.panelBody.Width(r.width - 2).Render(header + highlighted)
}
