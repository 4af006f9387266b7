// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package binding maps a (user, persona) pair to the id of the remote
// conversation that continues it.
//
// A binding is created lazily after the first successful send and removed
// by clear-memory or when the server reports the conversation as missing.
// Values live in a storage.KV under keys of the form chat_<user>_<persona>.
//
// # Usage
//
//	b := binding.New(kv)
//	id, ok, err := b.Get(ctx, "1", "mira")
//	if !ok {
//	    // first message of a new conversation
//	}
//	err = b.Set(ctx, "1", "mira", "42")
package binding
