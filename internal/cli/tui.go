// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/confidant/internal/model"
	"github.com/jeranaias/confidant/internal/storage"
	"github.com/jeranaias/confidant/internal/ui/chat"
	"github.com/jeranaias/confidant/internal/ui/styles"
)

// HandleTUI handles the default command: persona picker, then the chat view.
// Without a terminal it falls back to line mode.
func HandleTUI(args Args) error {
	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := context.Background()
	if !IsTTY() || !IsStdoutTTY() {
		env.Logger.Info("no terminal, using line mode")
		return startChat(ctx, env, args)
	}

	user, err := env.RequireUser(ctx)
	if err != nil {
		return err
	}
	env.RefreshCatalog(ctx)

	theme := styles.NewTheme(os.Stdout, env.Config.UI.Theme)

	var persona model.Persona
	if args.Persona != "" {
		if persona, err = env.ResolvePersona(args.Persona); err != nil {
			return err
		}
	} else {
		var ok bool
		if persona, ok, err = pickPersona(env, theme); err != nil || !ok {
			return err
		}
	}

	ctrl, err := env.NewController(user, persona)
	if err != nil {
		return err
	}

	var changes <-chan struct{}
	if env.Config.Storage.Watch && strings.EqualFold(env.Config.Storage.Backend, storage.BackendFile) {
		w, err := storage.Watch(env.StoragePath(), storage.DefaultDebounce)
		if err != nil {
			env.Logger.Warn("binding watcher disabled", "error", err)
		} else {
			defer w.Close()
			changes = w.Changes()
		}
	}

	view := chat.New(chat.Options{
		Conversation: ctrl,
		Persona:      persona,
		Theme:        theme,
		Renderer:     env.Renderer(0),
		Health:       env.Client,
		Changes:      changes,
		Logout:       env.Session.Logout,
		Export: func(ctx context.Context) (string, error) {
			exporter, opts, err := exporterFor("", "", false)
			if err != nil {
				return "", err
			}
			path, _, err := writeTranscript(ctx, ctrl, persona, user, exporter, opts)
			return path, err
		},
		Logger: env.Logger,
	})

	final, err := tea.NewProgram(view, tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("chat view failed: %w", err)
	}

	outcome := final.(chat.Model).Outcome()
	switch {
	case outcome.AuthExpired:
		return ErrSessionExpired
	case outcome.LoggedOut:
		fmt.Fprintln(env.Out, SuccessStyle.Render("[OK]")+" Signed out.")
	}
	return nil
}

// pickPersona runs the picker. ok is false when the user quit without
// choosing.
func pickPersona(env *Env, theme *styles.Theme) (model.Persona, bool, error) {
	picker := chat.NewPicker(env.Catalog.All(), env.Config.DefaultPersona, theme)
	final, err := tea.NewProgram(picker, tea.WithAltScreen()).Run()
	if err != nil {
		return model.Persona{}, false, fmt.Errorf("persona picker failed: %w", err)
	}
	p, ok := final.(chat.Picker).Chosen()
	return p, ok, nil
}
