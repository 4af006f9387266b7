// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jeranaias/confidant/internal/model"
)

// Send delivers one user message to the persona. A nil conversationID starts
// a new conversation; the result carries the id to use from then on.
//
// A 404 whose detail names the conversation is reported as
// ErrConversationNotFound. Other 404s (unknown persona) only match
// ErrNotFound.
func (c *Client) Send(ctx context.Context, personaID, text string, conversationID *string) (*SendResult, error) {
	req := chatRequest{
		CharacterID: personaID,
		Message:     text,
		UserID:      c.creds.UserID(),
	}
	if conversationID != nil {
		id, ok := parseConversationID(*conversationID)
		if !ok {
			return nil, staleConversation("send")
		}
		req.ConversationID = &id
	}

	var resp chatResponse
	err := c.do(ctx, call{
		op:       "send",
		method:   http.MethodPost,
		path:     "/chat",
		body:     req,
		out:      &resp,
		notFound: notFoundByDetail,
	})
	if err != nil {
		return nil, err
	}
	if resp.ConversationID <= 0 {
		return nil, fmt.Errorf("send: %w: missing conversation id", ErrInvalidResponse)
	}

	return &SendResult{
		ConversationID: model.FormatServerID(resp.ConversationID),
		Reply:          resp.CharacterResponse,
		Metadata:       resp.Metadata,
		Timestamp:      resp.Timestamp.Time,
	}, nil
}

// FetchHistory returns the transcript of a conversation in server order.
// Any 404 is reported as ErrConversationNotFound.
func (c *Client) FetchHistory(ctx context.Context, conversationID string) ([]model.HistoryRecord, error) {
	if _, ok := parseConversationID(conversationID); !ok {
		return nil, staleConversation("fetch history")
	}

	var resp conversationResponse
	err := c.do(ctx, call{
		op:       "fetch history",
		method:   http.MethodGet,
		path:     "/conversations/" + url.PathEscape(conversationID),
		out:      &resp,
		notFound: notFoundConversation,
	})
	if err != nil {
		return nil, err
	}
	return resp.records(), nil
}

// ClearMemory asks the server to drop the active conversation between the
// current user and the persona.
func (c *Client) ClearMemory(ctx context.Context, personaID string) (*Ack, error) {
	var ack Ack
	err := c.do(ctx, call{
		op:     "clear memory",
		method: http.MethodPost,
		path:   "/chat/clear",
		body: clearRequest{
			CharacterID: personaID,
			UserID:      c.creds.UserID(),
		},
		out: &ack,
	})
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

// Conversations lists the user's remote conversations.
func (c *Client) Conversations(ctx context.Context) ([]ConversationSummary, error) {
	var resp []conversationSummaryResponse
	err := c.do(ctx, call{
		op:     "list conversations",
		method: http.MethodGet,
		path:   "/conversations",
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(resp))
	for _, r := range resp {
		out = append(out, r.summary())
	}
	return out, nil
}

// parseConversationID validates the string form of a server id. Server ids
// are positive integers; anything else cannot name a live conversation.
func parseConversationID(id string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func staleConversation(op string) error {
	return &RemoteError{
		Op:               op,
		Status:           http.StatusNotFound,
		Detail:           "Conversation not found",
		conversationGone: true,
	}
}
