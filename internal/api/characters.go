// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jeranaias/confidant/internal/model"
)

// Characters lists the personas known to the backend.
func (c *Client) Characters(ctx context.Context) ([]model.Persona, error) {
	var resp []characterResponse
	err := c.do(ctx, call{
		op:     "list characters",
		method: http.MethodGet,
		path:   "/characters",
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Persona, 0, len(resp))
	for _, r := range resp {
		out = append(out, r.persona())
	}
	return out, nil
}

// Character fetches one persona by id.
func (c *Client) Character(ctx context.Context, id string) (*model.Persona, error) {
	var resp characterResponse
	err := c.do(ctx, call{
		op:     "get character",
		method: http.MethodGet,
		path:   "/characters/" + url.PathEscape(id),
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	p := resp.persona()
	return &p, nil
}
