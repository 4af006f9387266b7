// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the conversation
// packages: chat messages, history records, personas and users.
//
// # Key Types
//
//   - Message: one chat line with sender, status and optional server id
//   - Sender: who wrote a message (user or persona)
//   - Status: lifecycle state (pending, confirmed, failed)
//   - HistoryRecord: one entry of a server-side conversation transcript
//   - Persona: a preset character the user can talk to
//   - User: the authenticated account
//
// # Usage
//
// Create an optimistic user message:
//
//	msg := model.NewUserMessage("hello")
//	// msg.Status == model.StatusPending
//
// Map a history record into a confirmed message:
//
//	msg := rec.ToMessage()
package model
