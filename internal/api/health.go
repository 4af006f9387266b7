// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"time"
)

// SlowStartThreshold is how long a health check may take before callers
// should tell the user the server is probably waking up.
const SlowStartThreshold = 2 * time.Second

// Health checks whether the backend is up.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var h HealthStatus
	err := c.do(ctx, call{
		op:     "health",
		method: http.MethodGet,
		path:   "/health",
		out:    &h,
		noAuth: true,
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Info returns backend build information.
func (c *Client) Info(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	err := c.do(ctx, call{
		op:     "info",
		method: http.MethodGet,
		path:   "/info",
		out:    &info,
		noAuth: true,
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// CheckHealth runs Health and calls onSlow once if no answer arrived within
// SlowStartThreshold. onSlow may be nil.
func (c *Client) CheckHealth(ctx context.Context, onSlow func()) (*HealthStatus, error) {
	type result struct {
		h   *HealthStatus
		err error
	}
	done := make(chan result, 1)
	go func() {
		h, err := c.Health(ctx)
		done <- result{h, err}
	}()

	timer := time.NewTimer(SlowStartThreshold)
	defer timer.Stop()

	for {
		select {
		case r := <-done:
			return r.h, r.err
		case <-timer.C:
			if onSlow != nil {
				onSlow()
			}
		}
	}
}
