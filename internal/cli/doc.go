// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the confidant command line.
//
// It parses arguments into a Command, wires the client stack (config,
// logging, session, API client, binding store, persona catalog) and runs
// the requested handler.
//
// # Key Types
//
//   - Command: the subcommand selected by Parse
//   - Args: global flags and command-specific values
//   - Env: the wired client stack shared by all handlers
//   - ArgParser: flag and positional parsing for subcommands
//   - ChatCLI: liner-backed line input with persistent history
//
// # Usage
//
//	cmd, args := cli.Parse(os.Args[1:])
//	switch cmd {
//	case cli.CmdChat:
//	    err = cli.HandleChat(args)
//	}
package cli
