// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and lipgloss styles of the chat view.

# Color System (colors.go)

All colors are lipgloss AdaptiveColor values so one palette serves light
and dark terminals:

	Accent        - persona names, header, focused input
	UserBubbleFg  - user message text
	PersonaFg     - persona reply text
	Rose          - failed messages and errors
	Amber         - pending messages, waking-up hint
	TextMuted     - timestamps and hints

# Theme System (theme.go)

A Theme owns a lipgloss.Renderer so the color profile and background
are decided per output rather than globally:

	theme := styles.NewTheme(os.Stdout, "auto")
	fmt.Println(theme.Error.Render("send failed"))

The "plain" theme forces the ASCII profile and drops all color.

# Animations (animations.go)

TypingSpinner is the frame set for the "persona is typing" indicator.
*/
package styles
