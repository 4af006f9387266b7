// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
	ThemePlain = "plain"
)

// Theme holds the styles for one output.
type Theme struct {
	Name         string
	IsDark       bool
	ColorProfile termenv.Profile

	renderer *lipgloss.Renderer

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderSub   lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserBubble    lipgloss.Style
	PersonaBubble lipgloss.Style
	PersonaName   lipgloss.Style
	Timestamp     lipgloss.Style
	PendingTag    lipgloss.Style
	FailedTag     lipgloss.Style
	FailureReason lipgloss.Style

	// ==========================================================================
	// CHROME
	// ==========================================================================

	Typing    lipgloss.Style
	StatusBar lipgloss.Style
	Hint      lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Prompt    lipgloss.Style
}

// NewTheme builds a theme for w. name is one of the Theme* constants;
// anything else is treated as auto.
func NewTheme(w io.Writer, name string) *Theme {
	r := lipgloss.NewRenderer(w)
	switch name {
	case ThemeDark:
		r.SetHasDarkBackground(true)
	case ThemeLight:
		r.SetHasDarkBackground(false)
	case ThemePlain:
		r.SetColorProfile(termenv.Ascii)
	default:
		name = ThemeAuto
	}

	t := &Theme{
		Name:         name,
		IsDark:       r.HasDarkBackground(),
		ColorProfile: r.ColorProfile(),
		renderer:     r,
	}
	t.initStyles()
	return t
}

// Renderer returns the lipgloss renderer bound to the theme's output.
func (t *Theme) Renderer() *lipgloss.Renderer {
	return t.renderer
}

// HasColor reports whether any color will be emitted.
func (t *Theme) HasColor() bool {
	return t.ColorProfile != termenv.Ascii
}

func (t *Theme) initStyles() {
	s := t.renderer.NewStyle

	t.Header = s().
		Bold(true).
		Foreground(Accent).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Accent).
		BorderBottom(true).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Padding(0, 1)
	t.HeaderTitle = s().Bold(true).Foreground(Accent)
	t.HeaderSub = s().Foreground(TextSecondary).Italic(true)

	t.UserBubble = s().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)
	t.PersonaBubble = s().
		Foreground(PersonaFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(PersonaBorder).
		Padding(0, 1)
	t.PersonaName = s().Bold(true).Foreground(Accent)
	t.Timestamp = s().Foreground(TextMuted)
	t.PendingTag = s().Foreground(Amber)
	t.FailedTag = s().Bold(true).Foreground(Rose)
	t.FailureReason = s().Foreground(Rose).Italic(true)

	t.Typing = s().Foreground(TextSecondary).Italic(true)
	t.StatusBar = s().Foreground(TextSecondary).Background(SurfaceDim).Padding(0, 1)
	t.Hint = s().Foreground(TextMuted)
	t.Error = s().Foreground(Rose)
	t.Success = s().Foreground(Emerald)
	t.Warning = s().Foreground(Amber)
	t.Prompt = s().Bold(true).Foreground(Cyan)
}

// SetSize updates the dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// BubbleWidth returns the message width for the current terminal width.
func (t *Theme) BubbleWidth() int {
	switch t.GetLayoutMode() {
	case LayoutNarrow:
		return max(t.Width-4, 20)
	case LayoutMedium:
		return t.Width * 4 / 5
	default:
		return t.Width * 2 / 3
	}
}

// GetLayoutMode returns the layout mode for the current width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
