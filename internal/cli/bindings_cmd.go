// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/session"
)

// HandleBindings handles "confidant bindings".
func HandleBindings(args Args) error {
	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()
	return runBindings(context.Background(), env, args)
}

func runBindings(ctx context.Context, env *Env, args Args) error {
	userID := env.Session.UserID()
	if userID == "" {
		return session.ErrNotSignedIn
	}

	switch strings.ToLower(args.Subcommand) {
	case "", "list", "ls":
		return listBindings(ctx, env, userID, args)

	case "clear", "forget":
		parser := NewArgParser(args.Raw)
		query := parser.Positional(1)
		if query == "" {
			return usageErrorf("usage: confidant bindings clear <persona>")
		}
		personaID := query
		if p, ok := env.Catalog.Lookup(query); ok {
			personaID = p.ID
		}
		if err := env.Bindings.Clear(ctx, userID, personaID); err != nil {
			return err
		}
		if !args.Quiet {
			fmt.Fprintf(env.Out, "%s The next message to %s starts a new conversation.\n", SuccessStyle.Render("[OK]"), personaID)
		}
		return nil

	default:
		return usageErrorf("unknown bindings subcommand %q (list, clear)", args.Subcommand)
	}
}

func listBindings(ctx context.Context, env *Env, userID string, args Args) error {
	entries, err := env.Bindings.List(ctx, userID)
	if err != nil {
		return err
	}

	remote := remoteConversations(ctx, env, len(entries))

	data := make([]BindingData, 0, len(entries))
	for _, e := range entries {
		d := BindingData{PersonaID: e.PersonaID, ConversationID: e.ConversationID}
		if p, ok := env.Catalog.Lookup(e.PersonaID); ok {
			d.PersonaName = p.Name
		}
		if c, ok := remote[e.ConversationID]; ok {
			d.Title = c.Title
			if !c.LastMessageAt.IsZero() {
				d.LastMessageAt = c.LastMessageAt.Local().Format("2006-01-02 15:04")
			}
		}
		data = append(data, d)
	}

	if args.JSON {
		return NewJSONResponse("bindings", data).Write(env.Out)
	}
	if len(data) == 0 {
		fmt.Fprintln(env.Out, DimStyle.Render("No conversations yet."))
		return nil
	}
	for _, d := range data {
		name := d.PersonaName
		if name == "" {
			name = d.PersonaID
		}
		line := LabelStyle.Render(name) + ValueStyle.Render("conversation "+d.ConversationID)
		if d.Title != "" {
			line += "  " + ValueStyle.Render(d.Title)
		}
		if d.LastMessageAt != "" {
			line += "  " + DimStyle.Render("last message "+d.LastMessageAt)
		}
		fmt.Fprintln(env.Out, line)
	}
	return nil
}

// remoteConversations indexes the server's conversation list by id. The list
// only adds detail, so failure yields an empty map.
func remoteConversations(ctx context.Context, env *Env, bound int) map[string]api.ConversationSummary {
	out := map[string]api.ConversationSummary{}
	if bound == 0 {
		return out
	}
	list, err := env.Client.Conversations(ctx)
	if err != nil {
		env.Logger.Debug("conversation details unavailable", "error", err)
		return out
	}
	for _, c := range list {
		out[c.ID] = c
	}
	return out
}
