// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/controller"
	"github.com/jeranaias/confidant/internal/export"
	"github.com/jeranaias/confidant/internal/model"
)

// HandleExport handles "confidant export".
func HandleExport(args Args) error {
	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()
	return runExport(context.Background(), env, args)
}

func runExport(ctx context.Context, env *Env, args Args) error {
	exporter, opts, err := exporterFor(args.Format, args.Output, args.IncludeFailed)
	if err != nil {
		return err
	}

	user, err := env.RequireUser(ctx)
	if err != nil {
		return err
	}
	env.RefreshCatalog(ctx)
	persona, err := env.ResolvePersona(args.Persona)
	if err != nil {
		return err
	}
	ctrl, err := env.NewController(user, persona)
	if err != nil {
		return err
	}

	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	if err := ctrl.LoadExisting(loadCtx); err != nil {
		if errors.Is(err, api.ErrAuth) {
			return ErrSessionExpired
		}
		return err
	}

	path, convID, err := writeTranscript(ctx, ctrl, persona, user, exporter, opts)
	if err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("export", ExportData{
			Path:           path,
			PersonaID:      persona.ID,
			ConversationID: convID,
			Format:         strings.TrimPrefix(exporter.FileExtension(), "."),
		}).Write(env.Out)
	}
	if !args.Quiet {
		fmt.Fprintf(env.Out, "%s Saved to %s\n", SuccessStyle.Render("[OK]"), path)
	}
	return nil
}

// exporterFor validates the format before anything touches the network.
func exporterFor(format, dir string, includeFailed bool) (export.Exporter, *export.Options, error) {
	opts := export.DefaultOptions()
	if dir != "" {
		opts.OutputDir = dir
	}
	opts.IncludeFailed = includeFailed

	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return nil, nil, &UsageError{Message: err.Error()}
	}
	return exporter, opts, nil
}

// writeTranscript exports the controller's current messages.
func writeTranscript(ctx context.Context, ctrl *controller.Controller, persona model.Persona, user model.User, exporter export.Exporter, opts *export.Options) (string, string, error) {
	convID, _, err := ctrl.ConversationID(ctx)
	if err != nil {
		return "", "", err
	}

	t := &export.Transcript{
		Persona:        persona,
		User:           user,
		ConversationID: convID,
		Messages:       ctrl.Store().Messages(),
		ExportedAt:     time.Now(),
	}
	path, err := export.ToFile(t, exporter, opts)
	if err != nil {
		if errors.Is(err, export.ErrEmptyTranscript) {
			return "", "", fmt.Errorf("nothing to export: no messages with %s yet", persona.Name)
		}
		return "", "", err
	}
	return path, convID, nil
}
