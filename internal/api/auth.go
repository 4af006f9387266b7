// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jeranaias/confidant/internal/model"
)

// Login exchanges email and password for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, call{
		op:     "login",
		method: http.MethodPost,
		path:   "/auth/login",
		body:   loginRequest{Email: strings.TrimSpace(email), Password: password},
		out:    &res,
		noAuth: true,
	})
	if err != nil {
		return nil, err
	}
	return checkAuthResult("login", &res)
}

// Register creates an account and returns its bearer token.
func (c *Client) Register(ctx context.Context, email, username, password string) (*AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, call{
		op:     "register",
		method: http.MethodPost,
		path:   "/auth/register",
		body: registerRequest{
			Email:    strings.TrimSpace(email),
			Username: strings.TrimSpace(username),
			Password: password,
		},
		out:    &res,
		noAuth: true,
	})
	if err != nil {
		return nil, err
	}
	return checkAuthResult("register", &res)
}

// Me returns the account the current token belongs to.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	err := c.do(ctx, call{
		op:     "current user",
		method: http.MethodGet,
		path:   "/auth/me",
		out:    &u,
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func checkAuthResult(op string, res *AuthResult) (*AuthResult, error) {
	if res.Token == "" {
		return nil, fmt.Errorf("%s: %w: missing access token", op, ErrInvalidResponse)
	}
	if res.User.ID == 0 {
		return nil, fmt.Errorf("%s: %w: missing user", op, ErrInvalidResponse)
	}
	return res, nil
}
