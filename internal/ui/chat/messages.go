// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/controller"
	"github.com/jeranaias/confidant/internal/model"
)

// =============================================================================
// CONVERSATION MESSAGES
// =============================================================================

// HistoryLoadedMsg reports the end of a history load.
type HistoryLoadedMsg struct {
	Err error
}

// SendResolvedMsg reports that a pending message settled.
type SendResolvedMsg struct {
	MessageID string
	Exchange  *controller.Exchange
	Err       error
}

// MemoryClearedMsg reports the outcome of a clear-memory request.
type MemoryClearedMsg struct {
	Ack *api.Ack
	Err error
}

// ExportedMsg reports where the conversation was saved.
type ExportedMsg struct {
	Path string
	Err  error
}

// BindingChangedMsg is sent when another process rewrote the binding file.
type BindingChangedMsg struct{}

// BindingRefreshedMsg reports the outcome of a binding check. Changed is set
// when the view was reloaded.
type BindingRefreshedMsg struct {
	Changed bool
	Err     error
}

// =============================================================================
// BACKEND STATUS MESSAGES
// =============================================================================

// HealthMsg carries the result of the start-up health check.
type HealthMsg struct {
	Status *api.HealthStatus
	Err    error
}

// SlowStartMsg fires when the health check has not answered within
// api.SlowStartThreshold.
type SlowStartMsg struct{}

// =============================================================================
// PICKER MESSAGES
// =============================================================================

// PersonaChosenMsg is emitted by the picker.
type PersonaChosenMsg struct {
	Persona model.Persona
}
