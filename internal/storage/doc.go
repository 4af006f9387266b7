// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides small durable key-value stores for client state.
//
// The conversation binding (which remote conversation belongs to which
// user and persona) is the main tenant. Values are plain strings.
//
// # Key Types
//
//   - KV: the store interface
//   - FileKV: one JSON document written atomically
//   - SQLiteKV: a single table in a WAL-mode SQLite database
//   - MemoryKV: process-local map, used in tests
//   - Watcher: reports writes made to a FileKV by another process
//
// # Usage
//
//	kv, err := storage.Open(storage.BackendFile, dataDir)
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
//
//	err = kv.Set(ctx, "chat_1_mira", "42")
//	id, ok, err := kv.Get(ctx, "chat_1_mira")
//
// # Storage Location
//
// Files live in the configured data directory (default ~/.confidant):
// bindings.json for the file backend, bindings.db for SQLite.
package storage
