// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the confidant backend.
//
// Chat operations (Send, FetchHistory, ClearMemory) make exactly one round
// trip each and never retry; retries are a user decision made by the
// controller. Failures are classified so callers can react:
//
//   - *NetworkError: the request never produced a response
//   - ErrAuth: the bearer token was rejected (HTTP 401)
//   - ErrNotFound: the addressed resource does not exist (HTTP 404)
//   - ErrConversationNotFound: the referenced conversation is gone
//   - *RemoteError: any other non-2xx response, Detail holds the reason
//
// RemoteError matches ErrAuth, ErrNotFound and ErrConversationNotFound
// through errors.Is, so the detail text is never lost.
//
// # Key Types
//
//   - Client: backend client with bearer auth, throttling and request logging
//   - SendResult: outcome of one chat exchange
//   - Ack: acknowledgement of a clear-memory request
//
// # Usage
//
//	client := api.NewClient("http://localhost:8000/api").
//	    WithTokenSource(sess).
//	    WithLogger(logger)
//
//	res, err := client.Send(ctx, "mira", "hello", nil)
//	if errors.Is(err, api.ErrConversationNotFound) {
//	    // drop the stale binding
//	}
package api
