// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error variables for classified backend failures.
var (
	// ErrAuth indicates the credentials were rejected.
	ErrAuth = errors.New("authentication required")

	// ErrNotFound indicates the addressed resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConversationNotFound indicates the referenced conversation no longer
	// exists on the server. It matches ErrNotFound.
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)

	// ErrInvalidResponse indicates a 2xx response that could not be decoded.
	ErrInvalidResponse = errors.New("invalid response from server")
)

// NetworkError is a transport failure: no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return e.Op + ": network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RemoteError is a non-2xx response from the backend.
type RemoteError struct {
	Op     string
	Status int
	Detail string

	// conversationGone marks a 404 that refers to the conversation itself
	// rather than, say, the persona.
	conversationGone bool
}

func (e *RemoteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Detail)
}

// Is lets RemoteError match the classification sentinels.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrAuth:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConversationNotFound:
		return e.Status == http.StatusNotFound && e.conversationGone
	}
	return false
}

// Reason returns the text to show the user for a failed request.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Detail != "" {
		return re.Detail
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return "Could not reach the server. Check your connection and try again."
	}
	if errors.Is(err, ErrAuth) {
		return "Your session has expired. Please log in again."
	}
	return err.Error()
}

// =============================================================================
// ERROR BODY DECODING
// =============================================================================

// errorBody is the FastAPI error envelope. Detail is either a string or a
// list of validation errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// parseDetail extracts a human-readable reason from an error body.
func parseDetail(body []byte, status int) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Detail) > 0 {
		var s string
		if err := json.Unmarshal(eb.Detail, &s); err == nil {
			return s
		}
		var items []validationItem
		if err := json.Unmarshal(eb.Detail, &items); err == nil && len(items) > 0 {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 && !strings.HasPrefix(text, "<") {
		return text
	}
	return http.StatusText(status)
}

// mentionsConversation reports whether a 404 detail names the conversation.
func mentionsConversation(detail string) bool {
	return strings.Contains(strings.ToLower(detail), "conversation not found")
}
