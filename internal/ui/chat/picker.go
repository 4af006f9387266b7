// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/confidant/internal/model"
	"github.com/jeranaias/confidant/internal/ui/styles"
	"github.com/jeranaias/confidant/internal/util"
)

// Picker lets the user choose a persona.
type Picker struct {
	personas []model.Persona
	cursor   int
	chosen   *model.Persona
	theme    *styles.Theme
	keys     PickerKeyMap
	help     help.Model
	width    int
}

// NewPicker creates a picker over personas with the cursor on the one
// whose id is selected, if present.
func NewPicker(personas []model.Persona, selected string, theme *styles.Theme) Picker {
	p := Picker{
		personas: personas,
		theme:    theme,
		keys:     DefaultPickerKeyMap(),
		help:     help.New(),
		width:    80,
	}
	for i, persona := range personas {
		if persona.ID == selected {
			p.cursor = i
			break
		}
	}
	return p
}

// Chosen returns the persona picked, if any.
func (p Picker) Chosen() (model.Persona, bool) {
	if p.chosen == nil {
		return model.Persona{}, false
	}
	return *p.chosen, true
}

// Init implements tea.Model.
func (p Picker) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.Quit):
			return p, tea.Quit
		case key.Matches(msg, p.keys.Up):
			if len(p.personas) > 0 {
				p.cursor = (p.cursor - 1 + len(p.personas)) % len(p.personas)
			}
		case key.Matches(msg, p.keys.Down):
			if len(p.personas) > 0 {
				p.cursor = (p.cursor + 1) % len(p.personas)
			}
		case key.Matches(msg, p.keys.Choose):
			if len(p.personas) == 0 {
				return p, nil
			}
			chosen := p.personas[p.cursor]
			p.chosen = &chosen
			return p, tea.Sequence(
				func() tea.Msg { return PersonaChosenMsg{Persona: chosen} },
				tea.Quit,
			)
		}
	}
	return p, nil
}

// View implements tea.Model.
func (p Picker) View() string {
	var b strings.Builder
	b.WriteString(p.theme.HeaderTitle.Render("Who would you like to talk to?"))
	b.WriteString("\n\n")

	descWidth := max(p.width-6, 20)
	for i, persona := range p.personas {
		marker := "  "
		name := persona.Name
		if i == p.cursor {
			marker = p.theme.Prompt.Render("> ")
			name = p.theme.PersonaName.Render(name)
		}
		b.WriteString(marker + name)
		if persona.Title != "" {
			b.WriteString(" " + p.theme.HeaderSub.Render(persona.Title))
		}
		b.WriteString("\n")
		if i == p.cursor && persona.Description != "" {
			b.WriteString("    " + p.theme.Hint.Render(util.TruncateWidth(persona.Description, descWidth)) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(p.help.ShortHelpView(p.keys.ShortHelp()))
	return b.String()
}
