// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/model"
)

// LoadExisting fills the store from the bound conversation. Without a
// binding it does nothing. A conversation the server no longer knows is
// evicted and only unsent messages remain; that is not an error.
// Pending and failed messages are kept after the loaded history.
func (c *Controller) LoadExisting(ctx context.Context) error {
	id, ok, err := c.bindings.Get(ctx, c.userID, c.personaID)
	if err != nil {
		return err
	}
	if !ok {
		c.setShown("")
		return nil
	}

	records, err := c.client.FetchHistory(ctx, id)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			c.store.Rebase(nil)
			c.setShown(id)
			c.evict(ctx, id)
			return nil
		}
		c.checkAuth(err)
		return fmt.Errorf("load conversation %s: %w", id, err)
	}

	msgs := make([]model.Message, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, r.ToMessage())
	}
	c.store.Rebase(msgs)
	c.setShown(id)

	c.logger.Info("conversation loaded", "conversation_id", id, "messages", len(msgs))
	return nil
}

// Refresh reloads when the stored binding no longer matches the conversation
// the store shows, for example after another process started or cleared
// one. Writes for other personas and this controller's own writes leave the
// binding equal to Shown and do nothing. changed reports whether the view
// was updated.
func (c *Controller) Refresh(ctx context.Context) (changed bool, err error) {
	id, ok, err := c.bindings.Get(ctx, c.userID, c.personaID)
	if err != nil {
		return false, err
	}
	if !ok {
		id = ""
	}
	if id == c.Shown() {
		return false, nil
	}

	c.logger.Info("conversation changed elsewhere", "from", c.Shown(), "to", id)
	if id == "" {
		c.store.Rebase(nil)
		c.setShown("")
		return true, nil
	}
	return true, c.LoadExisting(ctx)
}

// ClearMemory asks the server to forget this persona's conversation. Local
// messages and the binding are cleared only after the server acknowledged.
func (c *Controller) ClearMemory(ctx context.Context) (*api.Ack, error) {
	ack, err := c.client.ClearMemory(ctx, c.personaID)
	if err != nil {
		c.checkAuth(err)
		c.logger.Warn("clear memory failed", "error", err)
		return nil, err
	}

	c.clears.Add(1)
	c.store.Clear()
	c.setShown("")
	if err := c.bindings.Clear(ctx, c.userID, c.personaID); err != nil {
		return ack, fmt.Errorf("clear binding: %w", err)
	}

	c.logger.Info("memory cleared", "status", ack.Status)
	return ack, nil
}
