// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/confidant/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	msgs := visible(t.Messages, e.options)
	if len(msgs) == 0 {
		return nil, ErrEmptyTranscript
	}

	var sb strings.Builder
	title := "Conversation with " + t.Persona.Name

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(title)))
		sb.WriteString(fmt.Sprintf("persona: %s\n", escapeYAML(t.Persona.ID)))
		if t.ConversationID != "" {
			sb.WriteString(fmt.Sprintf("conversation_id: %s\n", escapeYAML(t.ConversationID)))
		}
		sb.WriteString(fmt.Sprintf("started: %s\n", msgs[0].CreatedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("messages: %d\n", len(msgs)))
		sb.WriteString(fmt.Sprintf("exported: %s\n", t.exportedAt().Format(time.RFC3339)))
		sb.WriteString("generator: confidant\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(title)))

	if e.options.IncludeMetadata {
		if t.Persona.Title != "" {
			sb.WriteString(fmt.Sprintf("*%s*\n\n", escapeMarkdown(t.Persona.Title)))
		}
		sb.WriteString(fmt.Sprintf("- **Started**: %s\n", formatTimestamp(msgs[0].CreatedAt)))
		sb.WriteString(fmt.Sprintf("- **Last message**: %s\n", formatTimestamp(msgs[len(msgs)-1].CreatedAt)))
		sb.WriteString(fmt.Sprintf("- **Messages**: %d\n", len(msgs)))
		sb.WriteString("\n---\n\n")
	}

	for i, msg := range msgs {
		label := e.roleLabel(t, msg)
		if e.options.IncludeTimestamps {
			sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(msg.CreatedAt)))
		} else {
			sb.WriteString(fmt.Sprintf("### %s\n\n", label))
		}

		sb.WriteString(strings.TrimSpace(msg.Text))
		sb.WriteString("\n\n")

		if msg.Status == model.StatusFailed {
			sb.WriteString(fmt.Sprintf("<sub>Not delivered: %s</sub>\n\n", msg.Failure))
		}

		if i < len(msgs)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from confidant on %s*\n",
		t.exportedAt().Local().Format("January 2, 2006 at 3:04 PM")))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

func (e *MarkdownExporter) roleLabel(t *Transcript, msg model.Message) string {
	if !msg.IsUser() {
		return escapeMarkdown(t.Persona.Name)
	}
	if t.User.Username != "" {
		return escapeMarkdown(t.User.Username)
	}
	return "You"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break titles and headings.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes a frontmatter value when it contains YAML syntax.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
