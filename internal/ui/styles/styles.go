// Copyright (c) 2025-2026 MarketWire Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the MarketWire TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette colors. Adaptive pairs pick per detected background.
var (
	Green  = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34d399"}
	Red    = lipgloss.AdaptiveColor{Light: "#b91c1c", Dark: "#f87171"}
	Yellow = lipgloss.AdaptiveColor{Light: "#a16207", Dark: "#fbbf24"}
	Blue   = lipgloss.AdaptiveColor{Light: "#1d4ed8", Dark: "#60a5fa"}
	Muted  = lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
	Accent = lipgloss.AdaptiveColor{Light: "#7c3aed", Dark: "#a78bfa"}
)

// Theme holds the styled components for the application.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Header and chrome
	Header    lipgloss.Style
	StatusBar lipgloss.Style

	// Connection status dot
	DotConnected    lipgloss.Style
	DotReconnecting lipgloss.Style
	DotDisconnected lipgloss.Style

	// Messages
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	Timestamp      lipgloss.Style

	// Indicators
	TypingIndicator lipgloss.Style
	Spinner         lipgloss.Style
	Progress        lipgloss.Style

	// Market strip
	QuoteUp   lipgloss.Style
	QuoteDown lipgloss.Style
	QuoteFlat lipgloss.Style

	// Toasts
	ToastInfo  lipgloss.Style
	ToastWarn  lipgloss.Style
	ToastError lipgloss.Style

	// Suggestions
	Suggestion lipgloss.Style

	// Input
	InputPrompt lipgloss.Style
}

// New creates a theme. mode is "dark", "light", or "auto"; auto follows the
// terminal background.
func New(mode string) *Theme {
	isDark := true
	switch mode {
	case "light":
		isDark = false
	case "dark":
		isDark = true
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Accent).
		Padding(0, 1)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(Muted).
		Padding(0, 1)

	t.DotConnected = lipgloss.NewStyle().Foreground(Green)
	t.DotReconnecting = lipgloss.NewStyle().Foreground(Yellow)
	t.DotDisconnected = lipgloss.NewStyle().Foreground(Red)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Blue)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Accent)
	t.SystemLabel = lipgloss.NewStyle().Foreground(Muted).Italic(true)
	t.Timestamp = lipgloss.NewStyle().Foreground(Muted)

	t.TypingIndicator = lipgloss.NewStyle().Foreground(Muted).Italic(true)
	t.Spinner = lipgloss.NewStyle().Foreground(Accent)
	t.Progress = lipgloss.NewStyle().Foreground(Blue)

	t.QuoteUp = lipgloss.NewStyle().Foreground(Green)
	t.QuoteDown = lipgloss.NewStyle().Foreground(Red)
	t.QuoteFlat = lipgloss.NewStyle().Foreground(Muted)

	t.ToastInfo = lipgloss.NewStyle().
		Foreground(Blue).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Blue).
		Padding(0, 1)
	t.ToastWarn = t.ToastInfo.
		Foreground(Yellow).
		BorderForeground(Yellow)
	t.ToastError = t.ToastInfo.
		Foreground(Red).
		BorderForeground(Red)

	t.Suggestion = lipgloss.NewStyle().
		Foreground(Muted).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Muted).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().Bold(true).Foreground(Green)
}

// StatusDot returns the colored dot for a connection state label.
func (t *Theme) StatusDot(state string) string {
	switch state {
	case "connected":
		return t.DotConnected.Render("●")
	case "connecting", "reconnecting":
		return t.DotReconnecting.Render("●")
	default:
		return t.DotDisconnected.Render("●")
	}
}
