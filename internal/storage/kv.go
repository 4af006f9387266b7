// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// =============================================================================
// KV INTERFACE
// =============================================================================

// KV is a durable string key-value store.
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys with the given prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

// =============================================================================
// BACKENDS
// =============================================================================

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// File names used inside the data directory.
const (
	FileName   = "bindings.json"
	SQLiteName = "bindings.db"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Open creates the store for backend inside dataDir.
func Open(backend, dataDir string) (KV, error) {
	switch strings.ToLower(backend) {
	case "", BackendFile:
		return NewFileKV(filepath.Join(dataDir, FileName)), nil
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dataDir, SQLiteName))
	case BackendMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Path returns the on-disk location used by backend, or "" for memory.
func Path(backend, dataDir string) string {
	switch strings.ToLower(backend) {
	case "", BackendFile:
		return filepath.Join(dataDir, FileName)
	case BackendSQLite:
		return filepath.Join(dataDir, SQLiteName)
	default:
		return ""
	}
}

func filterKeys(m map[string]string, prefix string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
