// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jeranaias/confidant/internal/util"
)

// =============================================================================
// FILE KV
// =============================================================================

// FileKV stores all entries in one JSON object on disk.
//
// Every read goes to disk so that writes made by another running client are
// visible immediately. Writes are read-modify-write under a process-local
// lock and land atomically; across processes the last writer wins.
type FileKV struct {
	path string
	mu   sync.Mutex
}

// NewFileKV creates a store backed by the JSON file at path. The file is
// created on first write.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

// Path returns the backing file path.
func (f *FileKV) Path() string {
	return f.path
}

func (f *FileKV) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (f *FileKV) Set(ctx context.Context, key, value string) error {
	return f.update(ctx, func(data map[string]string) bool {
		if cur, ok := data[key]; ok && cur == value {
			return false
		}
		data[key] = value
		return true
	})
}

func (f *FileKV) Delete(ctx context.Context, key string) error {
	return f.update(ctx, func(data map[string]string) bool {
		if _, ok := data[key]; !ok {
			return false
		}
		delete(data, key)
		return true
	})
}

func (f *FileKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return nil, err
	}
	return filterKeys(data, prefix), nil
}

func (f *FileKV) Close() error { return nil }

func (f *FileKV) update(ctx context.Context, mutate func(map[string]string) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	if !mutate(data) {
		return nil
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", f.path, err)
	}
	if err := util.AtomicWriteFile(f.path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.path, err)
	}
	return nil
}

func (f *FileKV) load() (map[string]string, error) {
	raw, err := util.ReadFileIfExists(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	data := make(map[string]string)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}
	return data, nil
}
