// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jeranaias/confidant/internal/util"
)

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser    Sender = "user"
	SenderPersona Sender = "persona"
)

// String returns the string representation of the sender.
func (s Sender) String() string {
	return string(s)
}

// SenderFromRole maps a server role onto a sender. The backend stores persona
// turns as "character"; "assistant" and "persona" are accepted as aliases.
// Anything else is treated as the user.
func SenderFromRole(role string) Sender {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant", "character", "persona":
		return SenderPersona
	default:
		return SenderUser
	}
}

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status is the lifecycle state of a message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one entry of the local conversation log.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Status    Status    `json:"status"`

	// ServerID is set once the remote store has assigned one.
	ServerID string `json:"server_id,omitempty"`

	// Failure is the human-readable reason for StatusFailed.
	Failure string `json:"failure,omitempty"`

	// Metadata is opaque reply metadata returned by the backend.
	Metadata map[string]any `json:"metadata,omitempty"`
}

var idCounter atomic.Uint64

// NextID returns a process-unique, monotonically increasing message id.
func NextID() string {
	return "msg_" + strconv.FormatUint(idCounter.Add(1), 10)
}

// NewUserMessage creates a pending user message with a fresh id.
func NewUserMessage(text string) Message {
	return Message{
		ID:        NextID(),
		Sender:    SenderUser,
		Text:      text,
		CreatedAt: time.Now(),
		Status:    StatusPending,
	}
}

// NewPersonaMessage creates a confirmed persona reply.
func NewPersonaMessage(text string, at time.Time) Message {
	if at.IsZero() {
		at = time.Now()
	}
	return Message{
		ID:        NextID(),
		Sender:    SenderPersona,
		Text:      text,
		CreatedAt: at,
		Status:    StatusConfirmed,
	}
}

// IsUser reports whether the message was written by the user.
func (m Message) IsUser() bool {
	return m.Sender == SenderUser
}

// Preview returns a one-line, width-limited preview of the text.
func (m Message) Preview(maxWidth int) string {
	return util.TruncateWidth(util.SingleLine(m.Text), maxWidth)
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	if m.Metadata != nil {
		md := make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			md[k] = v
		}
		m.Metadata = md
	}
	return m
}
