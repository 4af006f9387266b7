// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package binding

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/confidant/internal/storage"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "chat_7_mira", Key("7", "mira"))
}

func TestBinding_Lifecycle(t *testing.T) {
	ctx := context.Background()
	b := New(storage.NewMemoryKV())

	_, ok, err := b.Get(ctx, "1", "mira")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, "1", "mira", "42"))
	id, ok, err := b.Get(ctx, "1", "mira")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", id)

	require.NoError(t, b.Clear(ctx, "1", "mira"))
	_, ok, _ = b.Get(ctx, "1", "mira")
	assert.False(t, ok)

	// Clearing an absent binding is not an error
	assert.NoError(t, b.Clear(ctx, "1", "mira"))
}

func TestBinding_SetRejectsEmpty(t *testing.T) {
	ctx := context.Background()
	b := New(storage.NewMemoryKV())

	assert.True(t, errors.Is(b.Set(ctx, "1", "mira", ""), ErrEmptyID))
	assert.True(t, errors.Is(b.Set(ctx, "1", "mira", "  "), ErrEmptyID))
	assert.True(t, errors.Is(b.Set(ctx, "", "mira", "4"), ErrEmptyKey))

	_, ok, _ := b.Get(ctx, "1", "mira")
	assert.False(t, ok)
}

func TestBinding_KeysAreIsolated(t *testing.T) {
	ctx := context.Background()
	b := New(storage.NewMemoryKV())

	require.NoError(t, b.Set(ctx, "1", "mira", "10"))
	require.NoError(t, b.Set(ctx, "2", "mira", "20"))
	require.NoError(t, b.Set(ctx, "1", "kai", "30"))

	id, _, _ := b.Get(ctx, "2", "mira")
	assert.Equal(t, "20", id)

	entries, err := b.List(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{UserID: "1", PersonaID: "kai", ConversationID: "30"},
		{UserID: "1", PersonaID: "mira", ConversationID: "10"},
	}, entries)
}

func TestBinding_SeparatorInIDs(t *testing.T) {
	ctx := context.Background()
	b := New(storage.NewMemoryKV())

	// "a_b"+"c" and "a"+"b_c" would share chat_a_b_c.
	assert.True(t, errors.Is(b.Set(ctx, "a_b", "c", "1"), ErrInvalidUserID))
	_, _, err := b.Get(ctx, "a_b", "c")
	assert.True(t, errors.Is(err, ErrInvalidUserID))
	assert.True(t, errors.Is(b.Clear(ctx, "a_b", "c"), ErrInvalidUserID))
	_, err = b.List(ctx, "a_b")
	assert.True(t, errors.Is(err, ErrInvalidUserID))

	// Persona ids end the key, so they may contain the separator.
	require.NoError(t, b.Set(ctx, "a", "b_c", "2"))
	id, ok, err := b.Get(ctx, "a", "b_c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", id)

	entries, err := b.List(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{UserID: "a", PersonaID: "b_c", ConversationID: "2"}}, entries)
}

func TestBinding_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), storage.FileName)

	require.NoError(t, New(storage.NewFileKV(path)).Set(ctx, "1", "ivy", "77"))

	id, ok, err := New(storage.NewFileKV(path)).Get(ctx, "1", "ivy")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "77", id)
}
