// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/util"
)

// HandlePersonas handles "confidant personas".
func HandlePersonas(args Args) error {
	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()
	return runPersonas(context.Background(), env, args)
}

func runPersonas(ctx context.Context, env *Env, args Args) error {
	if args.Persona != "" {
		return showPersona(ctx, env, args)
	}
	env.RefreshCatalog(ctx)

	// Conversation markers are shown only for a signed-in user.
	bound := map[string]bool{}
	if userID := env.Session.UserID(); userID != "" {
		entries, err := env.Bindings.List(ctx, userID)
		if err != nil {
			env.Logger.Warn("failed to list bindings", "error", err)
		}
		for _, e := range entries {
			bound[e.PersonaID] = true
		}
	}

	personas := env.Catalog.All()
	if args.JSON {
		data := PersonasData{Source: string(env.Catalog.Origin()), Personas: make([]PersonaData, 0, len(personas))}
		for _, p := range personas {
			data.Personas = append(data.Personas, PersonaData{
				ID:          p.ID,
				Name:        p.Name,
				Title:       p.Title,
				Description: p.Description,
				UseCases:    p.UseCases,
				Bound:       bound[p.ID],
			})
		}
		return NewJSONResponse("personas", data).Write(env.Out)
	}

	width := GetTerminalWidth()
	fmt.Fprintln(env.Out, TitleStyle.Render("Personas"))
	for _, p := range personas {
		line := PersonaStyle.Render(p.Name) + " " + DimStyle.Render("("+p.ID+")")
		if p.Title != "" {
			line += "  " + ValueStyle.Render(p.Title)
		}
		if bound[p.ID] {
			line += "  " + SuccessStyle.Render("*")
		}
		fmt.Fprintln(env.Out, line)
		if !args.Quiet && p.Description != "" {
			fmt.Fprintln(env.Out, "  "+DimStyle.Render(util.TruncateWidth(p.Description, width-4)))
		}
		if args.Verbose && len(p.UseCases) > 0 {
			fmt.Fprintln(env.Out, "  "+DimStyle.Render(strings.Join(p.UseCases, ", ")))
		}
	}
	if len(bound) > 0 && !args.Quiet {
		fmt.Fprintln(env.Out)
		fmt.Fprintln(env.Out, DimStyle.Render("* has an ongoing conversation"))
	}
	return nil
}

// showPersona prints one persona. The server's copy is preferred; the local
// catalog answers when the server does not.
func showPersona(ctx context.Context, env *Env, args Args) error {
	persona, err := env.Catalog.MustLookup(args.Persona)
	id := args.Persona
	if err == nil {
		id = persona.ID
	}

	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()
	remote, rerr := env.Client.Character(ctx, id)
	switch {
	case rerr == nil:
		persona = *remote
	case err != nil:
		if errors.Is(rerr, api.ErrNotFound) {
			return err
		}
		return rerr
	default:
		env.Logger.Debug("using local persona", "persona", id, "error", rerr)
	}

	bound := false
	if userID := env.Session.UserID(); userID != "" {
		_, bound, _ = env.Bindings.Get(ctx, userID, persona.ID)
	}

	if args.JSON {
		return NewJSONResponse("personas", PersonaData{
			ID:          persona.ID,
			Name:        persona.Name,
			Title:       persona.Title,
			Description: persona.Description,
			Domain:      persona.Domain,
			Personality: persona.Personality,
			UseCases:    persona.UseCases,
			Bound:       bound,
		}).Write(env.Out)
	}

	fmt.Fprintln(env.Out, TitleStyle.Render(persona.Name))
	if persona.Title != "" {
		fmt.Fprintln(env.Out, labelValue("Title", persona.Title))
	}
	if persona.Domain != "" {
		fmt.Fprintln(env.Out, labelValue("Domain", persona.Domain))
	}
	if persona.Personality != "" {
		fmt.Fprintln(env.Out, labelValue("Personality", persona.Personality))
	}
	if len(persona.UseCases) > 0 {
		fmt.Fprintln(env.Out, labelValue("Good for", strings.Join(persona.UseCases, ", ")))
	}
	if bound {
		fmt.Fprintln(env.Out, labelValue("Conversation", "ongoing"))
	}
	if persona.Description != "" {
		fmt.Fprintln(env.Out)
		fmt.Fprintln(env.Out, persona.Description)
	}
	return nil
}
