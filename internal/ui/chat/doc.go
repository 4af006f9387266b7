// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea views of the confidant TUI.

# Key Components

## Model (model.go)

The chat view for one persona. It owns a viewport of rendered messages,
a text input and a typing spinner, and drives a controller:

  - Enter: Begin runs synchronously so the message shows at once, then
    Resolve runs as a tea.Cmd. Several sends may be in flight.
  - Ctrl+R: retry the most recent failed message
  - Ctrl+K (twice): ask the server to forget the conversation
  - Ctrl+S: save the conversation to a Markdown file
  - Ctrl+O: sign out
  - Esc / Ctrl+C: quit

## Picker (picker.go)

A cursor list of personas shown when no persona was named on the
command line.

## Messages (messages.go)

The tea.Msg types produced by the commands in commands.go.

# Usage

	m := chat.New(chat.Options{
	    Conversation: ctl,
	    Persona:      persona,
	    Theme:        styles.NewTheme(os.Stdout, cfg.UI.Theme),
	    Renderer:     render.New(render.Options{Markdown: true}),
	})
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	outcome := final.(chat.Model).Outcome()
*/
package chat
