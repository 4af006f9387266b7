// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/confidant/internal/model"
	"github.com/jeranaias/confidant/internal/ui/styles"
	"github.com/jeranaias/confidant/internal/util"
)

// View renders the chat view.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderTyping())
	b.WriteString("\n")
	b.WriteString(m.renderNotice())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return b.String()
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	left := m.theme.HeaderTitle.Render(m.persona.Name)
	if m.persona.Title != "" {
		left += " " + m.theme.HeaderSub.Render(m.persona.Title)
	}

	right := m.renderBackend()
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderBackend() string {
	switch m.backend {
	case backendHealthy:
		return m.theme.Success.Render(styles.StatusIndicators.Healthy)
	case backendWaking:
		return m.theme.Warning.Render(styles.StatusIndicators.Waking + " server is waking up " + m.spinner.View())
	case backendOffline:
		return m.theme.Error.Render(styles.StatusIndicators.Offline + " server unreachable")
	default:
		return ""
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

func (m Model) renderMessages() string {
	msgs := m.conv.Store().Messages()
	if len(msgs) == 0 {
		if m.loading {
			return m.theme.Hint.Render("Loading conversation...")
		}
		return m.renderEmpty()
	}

	width := m.theme.BubbleWidth()
	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg.IsUser() {
			parts = append(parts, m.renderUser(msg, width))
		} else {
			parts = append(parts, m.renderPersona(msg, width))
		}
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) renderEmpty() string {
	lines := []string{m.theme.Hint.Render("Say hello to " + m.persona.Name + ".")}
	if m.persona.Description != "" {
		lines = append(lines, m.theme.Hint.Render(m.persona.Description))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderUser(msg model.Message, width int) string {
	label := "You " + m.theme.Timestamp.Render(msg.CreatedAt.Local().Format("15:04"))
	switch msg.Status {
	case model.StatusPending:
		label += " " + m.theme.PendingTag.Render(styles.StatusIndicators.Pending+" sending")
	case model.StatusFailed:
		label += " " + m.theme.FailedTag.Render(styles.StatusIndicators.Failed+" not delivered")
	}

	body := m.theme.UserBubble.Width(width).Render(msg.Text)
	out := lipgloss.JoinVertical(lipgloss.Right, label, body)
	if msg.Status == model.StatusFailed && msg.Failure != "" {
		reason := m.theme.FailureReason.Render(util.TruncateWidth(msg.Failure, width))
		out = lipgloss.JoinVertical(lipgloss.Right, out, reason)
	}
	if m.width > 0 {
		out = lipgloss.PlaceHorizontal(m.width, lipgloss.Right, out)
	}
	return out
}

func (m Model) renderPersona(msg model.Message, width int) string {
	label := m.theme.PersonaName.Render(m.persona.Name) + " " +
		m.theme.Timestamp.Render(msg.CreatedAt.Local().Format("15:04"))
	body := m.theme.PersonaBubble.Width(width).Render(m.renderer.Reply(msg.Text))
	return lipgloss.JoinVertical(lipgloss.Left, label, body)
}

// =============================================================================
// FOOTER
// =============================================================================

func (m Model) renderTyping() string {
	if m.conv.InFlight() == 0 {
		return ""
	}
	return m.theme.Typing.Render(m.spinner.View() + " " + m.persona.Name + " is typing")
}

func (m Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	if m.noticeIsErr {
		return m.theme.Error.Render(m.notice)
	}
	return m.theme.Hint.Render(m.notice)
}
