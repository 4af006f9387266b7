// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the confidant packages.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - TruncateWidth: display-width aware truncation (CJK, emoji)
//   - SingleLine: collapse newlines for one-line previews
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//
// # Usage
//
//	// Truncate long strings safely for display
//	display := util.TruncateWidth(reply, 60)
//
//	// Write files atomically to prevent data loss
//	err := util.AtomicWriteFile(path, data, 0600)
package util
