// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns persona replies into terminal output.
//
// Replies are markdown. With markdown enabled they go through glamour;
// otherwise the text is printed as-is with fenced code blocks highlighted
// by chroma. Any rendering failure falls back to the raw text.
package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
)

// DefaultWordWrap is used when Options.WordWrap is not set.
const DefaultWordWrap = 80

// Options configures a Renderer.
type Options struct {
	// Markdown enables glamour rendering.
	Markdown bool

	// Theme is "auto", "dark", "light" or "plain". "plain" disables all
	// ANSI styling.
	Theme string

	// WordWrap is the target width in columns.
	WordWrap int
}

// Renderer renders persona replies. It is safe for concurrent use only
// when Markdown is disabled; the chat view renders from one goroutine.
type Renderer struct {
	opts Options
	md   *glamour.TermRenderer
}

// New builds a Renderer. If glamour cannot be initialised the renderer
// silently degrades to plain output.
func New(opts Options) *Renderer {
	if opts.WordWrap <= 0 {
		opts.WordWrap = DefaultWordWrap
	}
	r := &Renderer{opts: opts}
	if opts.Markdown {
		md, err := glamour.NewTermRenderer(styleOption(opts.Theme), glamour.WithWordWrap(opts.WordWrap))
		if err == nil {
			r.md = md
		}
	}
	return r
}

func styleOption(theme string) glamour.TermRendererOption {
	switch theme {
	case "dark":
		return glamour.WithStandardStyle("dark")
	case "light":
		return glamour.WithStandardStyle("light")
	case "plain":
		return glamour.WithStandardStyle("notty")
	default:
		return glamour.WithAutoStyle()
	}
}

// Width returns the configured wrap width.
func (r *Renderer) Width() int {
	return r.opts.WordWrap
}

// Markdown reports whether glamour rendering is active.
func (r *Renderer) Markdown() bool {
	return r.md != nil
}

// Reply renders a persona reply.
func (r *Renderer) Reply(text string) string {
	if r.md != nil {
		out, err := r.md.Render(text)
		if err == nil {
			return strings.Trim(out, "\n")
		}
	}
	if r.opts.Theme == "plain" {
		return text
	}
	return HighlightBlocks(text)
}

// =============================================================================
// CODE HIGHLIGHTING
// =============================================================================

// HighlightBlocks highlights the body of every fenced code block in text.
// Fence lines are kept so the output still reads as markdown.
func HighlightBlocks(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	var code []string
	var lang string
	inBlock := false

	flush := func() {
		if len(code) > 0 {
			out = append(out, strings.TrimRight(Highlight(strings.Join(code, "\n"), lang), "\n"))
		}
		code = nil
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inBlock {
				flush()
				out = append(out, line)
				inBlock = false
				lang = ""
				continue
			}
			lang = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "```"))
			out = append(out, line)
			inBlock = true
			continue
		}
		if inBlock {
			code = append(code, line)
			continue
		}
		out = append(out, line)
	}
	// Unclosed block
	if inBlock {
		flush()
	}
	return strings.Join(out, "\n")
}

// Highlight returns code with terminal256 colors. An unknown language is
// guessed from the code; on any error the code is returned unchanged.
func Highlight(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}
