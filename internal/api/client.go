// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Configuration constants for the backend client.
const (
	// DefaultBaseURL is the backend API root used when none is configured.
	DefaultBaseURL = "http://localhost:8000/api"

	// DefaultTimeout bounds a single request. Persona replies are generated
	// by a remote model and can take a while.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-ID"
)

// =============================================================================
// CREDENTIALS
// =============================================================================

// Credentials supplies the bearer token and the user id sent with chat
// requests. Either may be empty.
type Credentials interface {
	Token() string
	UserID() string
}

// StaticCredentials is a fixed Credentials value.
type StaticCredentials struct {
	AccessToken string
	User        string
}

func (s StaticCredentials) Token() string  { return s.AccessToken }
func (s StaticCredentials) UserID() string { return s.User }

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the confidant backend.
//
// The Client is safe for concurrent use. Configure it with the With* methods
// before sharing it between goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	limiter    *rate.Limiter
	logger     *slog.Logger
	userAgent  string
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		creds:     StaticCredentials{},
		limiter:   rate.NewLimiter(rate.Inf, 0),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		userAgent: "confidant",
	}
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithCredentials sets the token and user id source.
func (c *Client) WithCredentials(creds Credentials) *Client {
	if creds != nil {
		c.creds = creds
	}
	return c
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
// A non-positive rps disables throttling.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithLogger sets the request logger.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// notFoundMode decides when a 404 means the conversation itself is gone.
type notFoundMode int

const (
	notFoundPlain        notFoundMode = iota // never
	notFoundByDetail                         // when the detail says so
	notFoundConversation                     // always
)

type call struct {
	op       string
	method   string
	path     string
	body     any
	out      any
	noAuth   bool
	notFound notFoundMode
}

// do performs one request. There are no retries.
func (c *Client) do(ctx context.Context, cl call) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &NetworkError{Op: cl.op, Err: err}
	}

	var reader io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", cl.op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", cl.op, err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !cl.noAuth {
		if token := c.creds.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("api request failed",
			"op", cl.op, "method", cl.method, "path", cl.path,
			"request_id", requestID, "duration", time.Since(start), "error", err)
		return &NetworkError{Op: cl.op, Err: err}
	}
	defer resp.Body.Close()

	body, err := readResponse(resp.Body)
	duration := time.Since(start)
	// Headers and bodies may carry credentials or user text; never log them.
	c.logger.Debug("api request",
		"op", cl.op, "method", cl.method, "path", cl.path,
		"status", resp.StatusCode, "request_id", requestID, "duration", duration)
	if err != nil {
		return &NetworkError{Op: cl.op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		re := &RemoteError{
			Op:     cl.op,
			Status: resp.StatusCode,
			Detail: parseDetail(body, resp.StatusCode),
		}
		if resp.StatusCode == http.StatusNotFound {
			switch cl.notFound {
			case notFoundConversation:
				re.conversationGone = true
			case notFoundByDetail:
				re.conversationGone = mentionsConversation(re.Detail)
			}
		}
		return re
	}

	if cl.out == nil {
		return nil
	}
	if err := json.Unmarshal(body, cl.out); err != nil {
		return fmt.Errorf("%s: %w: %v", cl.op, ErrInvalidResponse, err)
	}
	return nil
}

// readResponse reads a response body up to MaxResponseSize.
func readResponse(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeds %d bytes", MaxResponseSize)
	}
	return data, nil
}
