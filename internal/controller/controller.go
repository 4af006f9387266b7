// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/messages"
	"github.com/jeranaias/confidant/internal/model"
)

// Error variables for local failures.
var (
	// ErrValidation is returned for an empty or whitespace-only submission.
	ErrValidation = errors.New("message is empty")

	// ErrUnknownMessage is returned by Retry for an id not in the store.
	ErrUnknownMessage = errors.New("message not found")

	// ErrNotFailed is returned by Retry for a message that has not failed.
	ErrNotFailed = errors.New("only failed messages can be retried")

	// ErrAlreadyResolved is returned when a Pending is resolved twice.
	ErrAlreadyResolved = errors.New("send already resolved")
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Conversations is the backend contract the controller needs.
// *api.Client implements it.
type Conversations interface {
	Send(ctx context.Context, personaID, text string, conversationID *string) (*api.SendResult, error)
	FetchHistory(ctx context.Context, conversationID string) ([]model.HistoryRecord, error)
	ClearMemory(ctx context.Context, personaID string) (*api.Ack, error)
}

// Bindings is the durable (user, persona) map. *binding.Binding implements it.
type Bindings interface {
	Get(ctx context.Context, userID, personaID string) (string, bool, error)
	Set(ctx context.Context, userID, personaID, conversationID string) error
	Clear(ctx context.Context, userID, personaID string) error
}

// Config wires a controller.
type Config struct {
	Client    Conversations
	Bindings  Bindings
	Store     *messages.Store
	UserID    string
	PersonaID string
	Logger    *slog.Logger
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns one (user, persona) conversation view.
type Controller struct {
	client    Conversations
	bindings  Bindings
	store     *messages.Store
	userID    string
	personaID string
	logger    *slog.Logger

	inflight atomic.Int32

	// clears counts acknowledged memory clears. A Pending remembers the
	// value it started under.
	clears atomic.Uint64

	mu            sync.RWMutex
	onAuthExpired func(error)

	// shown is the conversation id the store reflects, "" for none.
	shown string
}

// New validates cfg and creates a controller. A nil Store gets a fresh one.
func New(cfg Config) (*Controller, error) {
	if cfg.Client == nil {
		return nil, errors.New("controller: client is required")
	}
	if cfg.Bindings == nil {
		return nil, errors.New("controller: bindings are required")
	}
	if cfg.UserID == "" || cfg.PersonaID == "" {
		return nil, errors.New("controller: user and persona ids are required")
	}
	if cfg.Store == nil {
		cfg.Store = messages.NewStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Controller{
		client:    cfg.Client,
		bindings:  cfg.Bindings,
		store:     cfg.Store,
		userID:    cfg.UserID,
		personaID: cfg.PersonaID,
		logger:    cfg.Logger.With("persona", cfg.PersonaID),
	}, nil
}

// Store returns the message store driven by this controller.
func (c *Controller) Store() *messages.Store {
	return c.store
}

// PersonaID returns the persona this view talks to.
func (c *Controller) PersonaID() string {
	return c.personaID
}

// InFlight returns the number of messages begun but not yet resolved.
func (c *Controller) InFlight() int {
	return int(c.inflight.Load())
}

// OnAuthExpired registers fn to be called whenever the server rejects the
// credentials. The message that triggered it is still marked failed.
func (c *Controller) OnAuthExpired(fn func(error)) {
	c.mu.Lock()
	c.onAuthExpired = fn
	c.mu.Unlock()
}

func (c *Controller) checkAuth(err error) {
	if !errors.Is(err, api.ErrAuth) {
		return
	}
	c.mu.RLock()
	fn := c.onAuthExpired
	c.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (c *Controller) setShown(id string) {
	c.mu.Lock()
	c.shown = id
	c.mu.Unlock()
}

// Shown returns the conversation id the store was last synced with.
func (c *Controller) Shown() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shown
}

// ConversationID returns the bound remote conversation id, if any.
func (c *Controller) ConversationID(ctx context.Context) (string, bool, error) {
	return c.bindings.Get(ctx, c.userID, c.personaID)
}
