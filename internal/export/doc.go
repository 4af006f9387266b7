// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a conversation with a persona to a file.
//
// # Key Types
//
//   - Transcript: the persona, account and messages to export
//   - Exporter: one output format (Markdown, JSON)
//   - Options: output directory and what to include
//
// # Supported Formats
//
//   - Markdown: human-readable, with YAML frontmatter
//   - JSON: machine-readable, every message field included
//
// # Usage
//
//	exporter, err := export.ForFormat("md", nil)
//	path, err := export.ToFile(transcript, exporter, nil)
package export
