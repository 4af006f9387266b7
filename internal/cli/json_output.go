// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// JSONResponse is the envelope every command prints in --json mode.
type JSONResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Error     *string     `json:"error"`
	Timestamp string      `json:"timestamp"`
	Command   string      `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response to stdout.
func (r *JSONResponse) Print() error {
	return r.Write(os.Stdout)
}

// Write writes the response as indented JSON.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// VersionData is printed by `version --json`.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// UserData is printed by `whoami --json` and after login.
type UserData struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// PersonaData is one entry of `personas --json`.
type PersonaData struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Domain      string   `json:"domain,omitempty"`
	Personality string   `json:"personality,omitempty"`
	UseCases    []string `json:"use_cases,omitempty"`
	Bound       bool     `json:"has_conversation"`
}

// PersonasData is printed by `personas --json`.
type PersonasData struct {
	Source   string        `json:"source"`
	Personas []PersonaData `json:"personas"`
}

// StatusData is printed by `status --json`.
type StatusData struct {
	Server    string `json:"server"`
	Healthy   bool   `json:"healthy"`
	SlowStart bool   `json:"slow_start"`
	LatencyMs int64  `json:"latency_ms"`
	AppName   string `json:"app_name,omitempty"`
	Version   string `json:"version,omitempty"`
	Model     string `json:"model,omitempty"`
	Error     string `json:"error,omitempty"`

	SignedIn bool   `json:"signed_in"`
	User     string `json:"user,omitempty"`
	Storage  string `json:"storage"`
}

// BindingData is one entry of `bindings --json`.
type BindingData struct {
	PersonaID      string `json:"persona_id"`
	PersonaName    string `json:"persona_name,omitempty"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title,omitempty"`
	LastMessageAt  string `json:"last_message_at,omitempty"`
}

// ExportData is the result of `export --json`.
type ExportData struct {
	Path           string `json:"path"`
	PersonaID      string `json:"persona_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Format         string `json:"format"`
}
