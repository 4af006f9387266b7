// confidant - talk to an AI companion from your terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/jeranaias/confidant/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse(os.Args[1:])

	var err error
	switch cmd {
	case cli.CmdTUI:
		err = cli.HandleTUI(args)
	case cli.CmdChat:
		err = cli.HandleChat(args)
	case cli.CmdLogin:
		err = cli.HandleLogin(args)
	case cli.CmdRegister:
		err = cli.HandleRegister(args)
	case cli.CmdLogout:
		err = cli.HandleLogout(args)
	case cli.CmdWhoami:
		err = cli.HandleWhoami(args)
	case cli.CmdPersonas:
		err = cli.HandlePersonas(args)
	case cli.CmdStatus:
		err = cli.HandleStatus(args)
	case cli.CmdConfig:
		err = cli.HandleConfig(args)
	case cli.CmdBindings:
		err = cli.HandleBindings(args)
	case cli.CmdExport:
		err = cli.HandleExport(args)
	case cli.CmdVersion:
		err = cli.HandleVersion(args)
	default:
		cli.PrintUsage()
	}

	cli.Exit(cmd.String(), err, args.JSON)
}
