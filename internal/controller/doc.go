// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controller drives one conversation view: it turns user intents
// (send, retry, load, clear) into message-store transitions and keeps the
// (user, persona) binding consistent with what the server confirmed.
//
// Sending is split in two so the optimistic user message is visible before
// any network traffic:
//
//	p, err := ctl.Begin(text)   // appends a pending message
//	ex, err := p.Resolve(ctx)   // talks to the server, settles the message
//
// Submit does both. Each Pending handle owns its message id, so several
// sends may be in flight at once and each settles only its own message.
//
// # Invariants
//
//   - Empty input is rejected with ErrValidation before anything changes.
//   - A user message ends confirmed or failed, never both.
//   - The binding is written only from a successful server response.
//   - A conversation the server no longer knows is forgotten locally.
//   - ClearMemory changes local state only after the server acknowledged.
//
// # Usage
//
//	ctl, err := controller.New(controller.Config{
//	    Client:    client,
//	    Bindings:  binding.New(kv),
//	    Store:     messages.NewStore(),
//	    UserID:    "7",
//	    PersonaID: "mira",
//	})
//	if err := ctl.LoadExisting(ctx); err != nil {
//	    return err
//	}
//	ex, err := ctl.Submit(ctx, "hello")
package controller
