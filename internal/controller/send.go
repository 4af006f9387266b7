// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/messages"
	"github.com/jeranaias/confidant/internal/model"
)

// Pending is a user message that has been shown but not yet sent.
type Pending struct {
	ctl      *Controller
	id       string
	text     string
	clears   uint64
	resolved atomic.Bool
}

// MessageID returns the id of the pending user message.
func (p *Pending) MessageID() string {
	return p.id
}

// Exchange is the outcome of a successful send.
type Exchange struct {
	UserMessageID   string
	Reply           model.Message
	ConversationID  string
	NewConversation bool
}

// Begin validates text and appends it as a pending user message. No network
// call is made. The message counts as in flight until Resolve returns, so
// every Pending must be resolved.
func (c *Controller) Begin(text string) (*Pending, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrValidation
	}

	msg := model.NewUserMessage(text)
	if err := c.store.Append(msg); err != nil {
		return nil, err
	}
	c.inflight.Add(1)
	c.logger.Debug("message pending", "message_id", msg.ID)

	return &Pending{ctl: c, id: msg.ID, text: text, clears: c.clears.Load()}, nil
}

// Submit appends text optimistically and sends it.
func (c *Controller) Submit(ctx context.Context, text string) (*Exchange, error) {
	p, err := c.Begin(text)
	if err != nil {
		return nil, err
	}
	return p.Resolve(ctx)
}

// RetryBegin removes the failed message id and re-appends its text as a new
// pending message.
func (c *Controller) RetryBegin(id string) (*Pending, error) {
	msg, ok := c.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	if msg.Status != model.StatusFailed || !msg.IsUser() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotFailed, id, msg.Status)
	}

	c.store.Remove(id)
	c.logger.Debug("retrying message", "message_id", id)
	return c.Begin(msg.Text)
}

// Retry resends a failed message.
func (c *Controller) Retry(ctx context.Context, id string) (*Exchange, error) {
	p, err := c.RetryBegin(id)
	if err != nil {
		return nil, err
	}
	return p.Resolve(ctx)
}

// LastFailed returns the id of the most recent failed user message.
func (c *Controller) LastFailed() (string, bool) {
	msgs := c.store.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsUser() && msgs[i].Status == model.StatusFailed {
			return msgs[i].ID, true
		}
	}
	return "", false
}

// Resolve sends the pending message and settles it. Any failure marks the
// message failed with a readable reason and is also returned.
func (p *Pending) Resolve(ctx context.Context) (*Exchange, error) {
	if !p.resolved.CompareAndSwap(false, true) {
		return nil, ErrAlreadyResolved
	}
	c := p.ctl
	defer c.inflight.Add(-1)

	bound, hasBinding, err := c.bindings.Get(ctx, c.userID, c.personaID)
	if err != nil {
		c.fail(p.id, "Could not read the saved conversation.", err)
		return nil, err
	}

	var convID *string
	if hasBinding {
		convID = &bound
	}

	res, err := c.client.Send(ctx, c.personaID, p.text, convID)
	if err != nil {
		c.fail(p.id, api.Reason(err), err)
		if hasBinding && errors.Is(err, api.ErrConversationNotFound) {
			c.evict(ctx, bound)
		}
		c.checkAuth(err)
		return nil, err
	}

	if !c.store.UpdateStatus(p.id, model.StatusConfirmed, messages.Patch{}) {
		// The message was removed while the request ran. The server still
		// holds the conversation, so keep it bound unless memory was cleared.
		if c.clears.Load() == p.clears {
			c.bind(ctx, hasBinding, bound, res.ConversationID)
		}
		c.logger.Info("reply dropped for removed message", "message_id", p.id)
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, p.id)
	}

	ex := &Exchange{
		UserMessageID:   p.id,
		ConversationID:  res.ConversationID,
		NewConversation: !hasBinding,
	}
	c.bind(ctx, hasBinding, bound, res.ConversationID)

	reply := model.NewPersonaMessage(res.Reply, res.Timestamp)
	reply.Metadata = res.Metadata
	if err := c.store.Append(reply); err != nil {
		return nil, err
	}
	ex.Reply = reply

	c.logger.Info("message confirmed",
		"message_id", p.id, "conversation_id", res.ConversationID, "new", ex.NewConversation)
	return ex, nil
}

// bind records a server-confirmed conversation id. The shown id is updated
// first so a watcher seeing this write does not reload.
func (c *Controller) bind(ctx context.Context, hasBinding bool, bound, id string) {
	c.setShown(id)
	if hasBinding && bound == id {
		return
	}
	if err := c.bindings.Set(ctx, c.userID, c.personaID, id); err != nil {
		c.logger.Warn("failed to save conversation binding", "conversation_id", id, "error", err)
	}
}

func (c *Controller) fail(id, reason string, cause error) {
	c.store.UpdateStatus(id, model.StatusFailed, messages.Patch{Failure: reason})
	c.logger.Warn("message failed", "message_id", id, "error", cause)
}

// evict clears the binding if it still points at stale. A concurrent send may
// already have replaced it with a live id.
func (c *Controller) evict(ctx context.Context, stale string) {
	current, ok, err := c.bindings.Get(ctx, c.userID, c.personaID)
	if err != nil || !ok || current != stale {
		return
	}
	if err := c.bindings.Clear(ctx, c.userID, c.personaID); err != nil {
		c.logger.Warn("failed to evict stale conversation", "conversation_id", stale, "error", err)
		return
	}
	c.mu.Lock()
	if c.shown == stale {
		c.shown = ""
	}
	c.mu.Unlock()
	c.logger.Info("evicted stale conversation", "conversation_id", stale)
}
