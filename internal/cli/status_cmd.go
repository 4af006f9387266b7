// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/confidant/internal/api"
)

// HandleStatus handles "confidant status".
func HandleStatus(args Args) error {
	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()
	return runStatus(context.Background(), env, args)
}

func runStatus(ctx context.Context, env *Env, args Args) error {
	data := StatusData{
		Server:  env.Client.BaseURL(),
		Storage: env.Config.Storage.Backend,
	}
	if path := env.StoragePath(); path != "" {
		data.Storage += " (" + path + ")"
	}
	if u, ok := env.Session.User(); ok && env.Session.IsAuthenticated() {
		data.SignedIn = true
		data.User = displayName(u)
	}

	start := time.Now()
	health, err := env.Client.CheckHealth(ctx, func() {
		data.SlowStart = true
		if !args.JSON && !args.Quiet {
			fmt.Fprintln(env.ErrOut, WarningStyle.Render("The server is waking up. This can take up to a minute..."))
		}
	})
	data.LatencyMs = time.Since(start).Milliseconds()

	if err == nil && !health.OK() {
		err = fmt.Errorf("server reported status %q", health.Status)
	}
	if err != nil {
		data.Error = api.Reason(err)
	} else {
		data.Healthy = true
		data.AppName = health.AppName
		data.Version = health.Version
		if info, infoErr := env.Client.Info(ctx); infoErr == nil {
			data.Model = info.Model
		} else {
			env.Logger.Debug("server info unavailable", "error", infoErr)
		}
	}

	if args.JSON {
		if werr := NewJSONResponse("status", data).Write(env.Out); werr != nil {
			return werr
		}
	} else {
		printStatus(env, data)
	}

	if err != nil {
		return reportedError{err}
	}
	return nil
}

func printStatus(env *Env, data StatusData) {
	fmt.Fprintln(env.Out, TitleStyle.Render("Confidant status"))

	server := ErrorStyle.Render("[!] unreachable")
	if data.Healthy {
		server = SuccessStyle.Render("[OK]") + fmt.Sprintf(" %d ms", data.LatencyMs)
	}
	fmt.Fprintln(env.Out, labelValue("Server", data.Server))
	fmt.Fprintln(env.Out, LabelStyle.Render("Health")+server)
	if data.Error != "" {
		fmt.Fprintln(env.Out, LabelStyle.Render("")+DimStyle.Render(data.Error))
	}
	if data.AppName != "" {
		fmt.Fprintln(env.Out, labelValue("Backend", data.AppName+" "+data.Version))
	}
	if data.Model != "" {
		fmt.Fprintln(env.Out, labelValue("Model", data.Model))
	}

	user := "not signed in"
	if data.SignedIn {
		user = data.User
	}
	fmt.Fprintln(env.Out, labelValue("User", user))
	fmt.Fprintln(env.Out, labelValue("Storage", data.Storage))
}
