// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/controller"
)

// requestTimeout bounds each command. The HTTP client has its own,
// shorter timeout; this one also covers rate-limit waits.
const requestTimeout = 2 * time.Minute

// resolveCmd sends a pending message in the background.
func resolveCmd(p *controller.Pending) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		ex, err := p.Resolve(ctx)
		return SendResolvedMsg{MessageID: p.MessageID(), Exchange: ex, Err: err}
	}
}

func loadHistoryCmd(conv Conversation) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return HistoryLoadedMsg{Err: conv.LoadExisting(ctx)}
	}
}

func refreshCmd(conv Conversation) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		changed, err := conv.Refresh(ctx)
		return BindingRefreshedMsg{Changed: changed, Err: err}
	}
}

func clearMemoryCmd(conv Conversation) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		ack, err := conv.ClearMemory(ctx)
		return MemoryClearedMsg{Ack: ack, Err: err}
	}
}

func exportCmd(export func(context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		path, err := export(ctx)
		return ExportedMsg{Path: path, Err: err}
	}
}

func healthCmd(h HealthChecker) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		status, err := h.Health(ctx)
		return HealthMsg{Status: status, Err: err}
	}
}

func slowStartCmd() tea.Cmd {
	return tea.Tick(api.SlowStartThreshold, func(time.Time) tea.Msg {
		return SlowStartMsg{}
	})
}

// waitForChange blocks until the binding watcher signals. A closed channel
// ends the wait without a message.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return BindingChangedMsg{}
	}
}
