// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/confidant/internal/config"
)

// HandleConfig handles "confidant config".
//
// Config does not need the client stack, so it loads the file directly.
func HandleConfig(args Args) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil && args.Subcommand != "path" {
		return err
	}
	return runConfig(os.Stdout, cfg, path, args)
}

func runConfig(out io.Writer, cfg *config.Config, path string, args Args) error {
	switch strings.ToLower(args.Subcommand) {
	case "", "show":
		if args.JSON {
			return NewJSONResponse("config", cfg).Write(out)
		}
		fmt.Fprintln(out, DimStyle.Render("# "+path))
		fmt.Fprintln(out, cfg.String())
		return nil

	case "path":
		if args.JSON {
			return NewJSONResponse("config", map[string]string{"path": path}).Write(out)
		}
		fmt.Fprintln(out, path)
		return nil

	case "keys":
		for _, k := range config.GetAllKeys() {
			fmt.Fprintln(out, k)
		}
		return nil

	case "get":
		if args.ConfigKey == "" {
			return usageErrorf("usage: confidant config get <key>")
		}
		val, err := cfg.Get(args.ConfigKey)
		if err != nil {
			return usageErrorf("%v (see `confidant config keys`)", err)
		}
		if args.JSON {
			return NewJSONResponse("config", map[string]interface{}{args.ConfigKey: val}).Write(out)
		}
		fmt.Fprintln(out, val)
		return nil

	case "set":
		if args.ConfigKey == "" || args.ConfigVal == "" {
			return usageErrorf("usage: confidant config set <key> <value>")
		}
		updated := cfg.Clone()
		if err := updated.Set(args.ConfigKey, args.ConfigVal); err != nil {
			return usageErrorf("%v", err)
		}
		if err := updated.Validate(); err != nil {
			return err
		}
		if err := config.SaveTOML(updated, path); err != nil {
			return err
		}
		if !args.Quiet {
			fmt.Fprintf(out, "%s %s = %s\n", SuccessStyle.Render("[OK]"), args.ConfigKey, args.ConfigVal)
		}
		return nil

	default:
		return usageErrorf("unknown config subcommand %q (show, get, set, path, keys)", args.Subcommand)
	}
}
