// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package messages provides the ordered, in-memory message log of one
// conversation view.
//
// Every message moves through pending to exactly one terminal status
// (confirmed or failed). The Store enforces that: updates to an unknown id
// are ignored, and a message that has reached a terminal status never
// changes status again.
//
// # Key Types
//
//   - Store: mutex-guarded ordered log with change notification
//   - Patch: optional fields applied together with a status transition
//
// # Usage
//
//	store := messages.NewStore()
//	msg := model.NewUserMessage("hello")
//	_ = store.Append(msg)
//	store.UpdateStatus(msg.ID, model.StatusConfirmed, messages.Patch{})
package messages
