// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jeranaias/confidant/internal/model"
)

// =============================================================================
// TIMESTAMPS
// =============================================================================

// Timestamp decodes the backend's ISO-8601 times. Values without a zone
// offset are UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// =============================================================================
// CHAT
// =============================================================================

type chatRequest struct {
	CharacterID    string `json:"character_id"`
	Message        string `json:"message"`
	ConversationID *int64 `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
}

type chatResponse struct {
	ConversationID    int64          `json:"conversation_id"`
	CharacterResponse string         `json:"character_response"`
	Timestamp         Timestamp      `json:"timestamp"`
	Metadata          map[string]any `json:"metadata"`
}

// SendResult is the outcome of a successful chat exchange.
type SendResult struct {
	ConversationID string
	Reply          string
	Metadata       map[string]any
	Timestamp      time.Time
}

type clearRequest struct {
	CharacterID string `json:"character_id"`
	UserID      string `json:"user_id"`
}

// Ack acknowledges a clear-memory request.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

type messageResponse struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

type conversationResponse struct {
	ID            int64             `json:"id"`
	CharacterID   string            `json:"character_id"`
	Title         *string           `json:"title"`
	StartedAt     Timestamp         `json:"started_at"`
	LastMessageAt Timestamp         `json:"last_message_at"`
	Messages      []messageResponse `json:"messages"`
}

func (c conversationResponse) records() []model.HistoryRecord {
	out := make([]model.HistoryRecord, 0, len(c.Messages))
	for _, m := range c.Messages {
		out = append(out, model.HistoryRecord{
			ServerID:  strconv.FormatInt(m.ID, 10),
			Role:      m.Role,
			Text:      m.Content,
			CreatedAt: m.Timestamp.Time,
		})
	}
	return out
}

// ConversationSummary describes one remote conversation.
type ConversationSummary struct {
	ID            string
	PersonaID     string
	Title         string
	StartedAt     time.Time
	LastMessageAt time.Time
}

type conversationSummaryResponse struct {
	ID            int64     `json:"id"`
	CharacterID   string    `json:"character_id"`
	Title         *string   `json:"title"`
	StartedAt     Timestamp `json:"started_at"`
	LastMessageAt Timestamp `json:"last_message_at"`
}

func (c conversationSummaryResponse) summary() ConversationSummary {
	s := ConversationSummary{
		ID:            strconv.FormatInt(c.ID, 10),
		PersonaID:     c.CharacterID,
		StartedAt:     c.StartedAt.Time,
		LastMessageAt: c.LastMessageAt.Time,
	}
	if c.Title != nil {
		s.Title = *c.Title
	}
	return s
}

// =============================================================================
// AUTH
// =============================================================================

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResult is returned by Login and Register.
type AuthResult struct {
	Token     string     `json:"access_token"`
	TokenType string     `json:"token_type"`
	User      model.User `json:"user"`
}

// =============================================================================
// CHARACTERS
// =============================================================================

type characterResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Image       string   `json:"image"`
	Description string   `json:"description"`
	Domain      string   `json:"domain"`
	Personality string   `json:"personality"`
	UseCases    []string `json:"useCases"`
}

func (c characterResponse) persona() model.Persona {
	return model.Persona{
		ID:          c.ID,
		Name:        c.Name,
		Title:       c.Title,
		Description: c.Description,
		Domain:      c.Domain,
		Personality: c.Personality,
		Image:       c.Image,
		UseCases:    c.UseCases,
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	AppName   string `json:"app_name"`
	Version   string `json:"version"`
}

// OK reports whether the server declared itself healthy.
func (h HealthStatus) OK() bool {
	return h.Status == "ok"
}

// ServerInfo is the body of GET /info.
type ServerInfo struct {
	AppName                string `json:"app_name"`
	Version                string `json:"version"`
	Model                  string `json:"model"`
	MaxConversationHistory int    `json:"max_conversation_history"`
}
