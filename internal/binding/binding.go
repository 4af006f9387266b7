// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package binding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/confidant/internal/storage"
)

const keyPrefix = "chat_"

var (
	// ErrEmptyID is returned by Set for an empty conversation id.
	ErrEmptyID = errors.New("conversation id is empty")

	// ErrEmptyKey is returned when the user or persona id is empty.
	ErrEmptyKey = errors.New("user and persona ids are required")

	// ErrInvalidUserID is returned for a user id containing the key
	// separator. Persona ids may contain it since they end the key.
	ErrInvalidUserID = errors.New("user id must not contain '_'")
)

// Entry is one stored binding.
type Entry struct {
	UserID         string
	PersonaID      string
	ConversationID string
}

// Binding is the durable (user, persona) to conversation id map.
type Binding struct {
	kv storage.KV
}

// New creates a binding over kv.
func New(kv storage.KV) *Binding {
	return &Binding{kv: kv}
}

// Key returns the storage key for a user and persona.
func Key(userID, personaID string) string {
	return keyPrefix + userID + "_" + personaID
}

func validate(userID, personaID string) error {
	if err := validate(userID, personaID); err != nil {
		return err
	}
	if strings.Contains(userID, "_") {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return nil
}

// Get returns the bound conversation id, if any.
func (b *Binding) Get(ctx context.Context, userID, personaID string) (string, bool, error) {
	if err := validate(userID, personaID); err != nil {
		return "", false, err
	}
	id, ok, err := b.kv.Get(ctx, Key(userID, personaID))
	if err != nil {
		return "", false, fmt.Errorf("read binding: %w", err)
	}
	if !ok || id == "" {
		return "", false, nil
	}
	return id, true, nil
}

// Set binds conversationID to the user and persona.
func (b *Binding) Set(ctx context.Context, userID, personaID, conversationID string) error {
	if err := validate(userID, personaID); err != nil {
		return err
	}
	if strings.TrimSpace(conversationID) == "" {
		return ErrEmptyID
	}
	if err := b.kv.Set(ctx, Key(userID, personaID), conversationID); err != nil {
		return fmt.Errorf("write binding: %w", err)
	}
	return nil
}

// Clear removes the binding for the user and persona.
func (b *Binding) Clear(ctx context.Context, userID, personaID string) error {
	if err := validate(userID, personaID); err != nil {
		return err
	}
	if err := b.kv.Delete(ctx, Key(userID, personaID)); err != nil {
		return fmt.Errorf("clear binding: %w", err)
	}
	return nil
}

// List returns every binding held for userID, ordered by persona id.
func (b *Binding) List(ctx context.Context, userID string) ([]Entry, error) {
	if userID == "" {
		return nil, ErrEmptyKey
	}
	if strings.Contains(userID, "_") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	prefix := Key(userID, "")
	keys, err := b.kv.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		id, ok, err := b.kv.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("list bindings: %w", err)
		}
		if !ok || id == "" {
			continue
		}
		entries = append(entries, Entry{
			UserID:         userID,
			PersonaID:      strings.TrimPrefix(k, prefix),
			ConversationID: id,
		})
	}
	return entries, nil
}
