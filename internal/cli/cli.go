// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdLogin
	CmdRegister
	CmdLogout
	CmdWhoami
	CmdPersonas
	CmdStatus
	CmdConfig
	CmdBindings
	CmdExport
	CmdVersion
	CmdHelp
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdLogin:
		return "login"
	case CmdRegister:
		return "register"
	case CmdLogout:
		return "logout"
	case CmdWhoami:
		return "whoami"
	case CmdPersonas:
		return "personas"
	case CmdStatus:
		return "status"
	case CmdConfig:
		return "config"
	case CmdBindings:
		return "bindings"
	case CmdExport:
		return "export"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool // Output in JSON format
	Plain   bool // No colors, no markdown
	Persona string
	Server  string

	// Command-specific
	Subcommand string
	ConfigKey  string
	ConfigVal  string
	Email      string
	Username   string

	// Export
	Format        string
	Output        string
	IncludeFailed bool

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `confidant - talk to an AI companion from your terminal

Usage:
  confidant                      Pick a persona and start the chat UI (default)
  confidant tui [persona]        Start the chat UI with a persona
  confidant chat [persona]       Line-mode chat (works over ssh and pipes)
  confidant login                Sign in
  confidant register             Create an account
  confidant logout               Sign out and forget the stored token
  confidant whoami               Show the signed-in user
  confidant personas, p [id]     List personas, or show one
  confidant status, s            Check the server
  confidant config [show|get|set|path]
  confidant bindings [list|clear <persona>]
  confidant export [persona]     Save a conversation (--format md|json, --output <dir>)
  confidant version              Show version
  confidant help                 Show this help

Global flags:
  --persona <id>    Persona to talk to (overrides default_persona)
  --server <url>    API root (overrides server.url)
  --json            Machine-readable output
  --plain           No colors or markdown
  -q, --quiet       Less output
  -v, --verbose     Debug logging

Chat commands (line mode):
  /retry            Resend the last message that failed
  /clear            Make the persona forget this conversation
  /history          Reload and print the conversation
  /export [md|json] Save the conversation to the current directory
  /logout           Sign out and exit
  /help             Show chat commands
  /quit, /exit      Leave

Environment:
  CONFIDANT_HOME, CONFIDANT_SERVER_URL, CONFIDANT_STORAGE,
  CONFIDANT_DATA_DIR, CONFIDANT_LOG_LEVEL, CONFIDANT_THEME, NO_COLOR

Examples:
  confidant login --email me@example.com
  confidant chat kai
  confidant config set ui.theme light
  confidant status --json
  confidant export kai --format json --output ~/notes
`

// Parse parses command line arguments (without the program name).
func Parse(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "tui":
		parsePersonaArg(&parsedArgs, remaining)
		return CmdTUI, parsedArgs

	case "chat", "c":
		parsePersonaArg(&parsedArgs, remaining)
		return CmdChat, parsedArgs

	case "login", "signin":
		parseAuthArgs(&parsedArgs, remaining)
		return CmdLogin, parsedArgs

	case "register", "signup":
		parseAuthArgs(&parsedArgs, remaining)
		return CmdRegister, parsedArgs

	case "logout", "signout":
		return CmdLogout, parsedArgs

	case "whoami", "me":
		return CmdWhoami, parsedArgs

	case "personas", "p":
		parsePersonaArg(&parsedArgs, remaining)
		return CmdPersonas, parsedArgs

	case "status", "s":
		return CmdStatus, parsedArgs

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "bindings":
		parser := NewArgParser(remaining)
		parsedArgs.Subcommand = parser.Subcommand()
		return CmdBindings, parsedArgs

	case "export", "e":
		parseExportArgs(&parsedArgs, remaining)
		return CmdExport, parsedArgs

	case "version", "--version", "-V":
		return CmdVersion, parsedArgs

	case "help", "--help", "-h":
		return CmdHelp, parsedArgs

	default:
		// A bare persona id starts the chat UI with that persona.
		if !strings.HasPrefix(cmd, "-") && parsedArgs.Persona == "" {
			parsedArgs.Persona = cmd
			return CmdTUI, parsedArgs
		}
		return CmdHelp, parsedArgs
	}
}

// parseGlobalFlags extracts flags that apply to every command.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--plain", "--no-color":
			parsedArgs.Plain = true
		case "--persona":
			if i+1 < len(args) {
				i++
				parsedArgs.Persona = args[i]
			}
		case "--server":
			if i+1 < len(args) {
				i++
				parsedArgs.Server = args[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--persona="):
				parsedArgs.Persona = strings.TrimPrefix(arg, "--persona=")
			case strings.HasPrefix(arg, "--server="):
				parsedArgs.Server = strings.TrimPrefix(arg, "--server=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs
}

func parsePersonaArg(args *Args, remaining []string) {
	parser := NewArgParser(remaining)
	if p := parser.Subcommand(); p != "" && args.Persona == "" {
		args.Persona = p
	}
}

func parseAuthArgs(args *Args, remaining []string) {
	parser := NewArgParser(remaining)
	args.Email = parser.Flag("email")
	args.Username = parser.FlagOrDefault("username", parser.Flag("u"))
	if args.Email == "" {
		args.Email = parser.Subcommand()
	}
}

func parseConfigArgs(args *Args, remaining []string) {
	parser := NewArgParser(remaining)
	args.Subcommand = parser.Subcommand()
	if args.Subcommand == "" {
		args.Subcommand = "show"
	}
	args.ConfigKey = parser.Positional(1)
	args.ConfigVal = JoinPositionalArgs(parser, 2)
}

func parseExportArgs(args *Args, remaining []string) {
	parser := NewArgParser(remaining)
	if p := parser.Subcommand(); p != "" && args.Persona == "" {
		args.Persona = p
	}
	args.Format = parser.FlagOrDefault("format", parser.Flag("f"))
	args.Output = parser.FlagOrDefault("output", parser.Flag("o"))
	args.IncludeFailed = parser.BoolFlag("include-failed")
	// "--include-failed kai" reads kai as the flag value.
	if v := parser.Flag("include-failed"); v != "" {
		args.IncludeFailed = true
		if args.Persona == "" {
			args.Persona = v
		}
	}
}

// PrintUsage prints the help text.
func PrintUsage() {
	fmt.Print(usageText)
}

// HandleVersion prints version information.
func HandleVersion(args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Print()
	}
	fmt.Fprintf(os.Stdout, "confidant %s (%s, built %s, %s)\n", Version, GitCommit, BuildDate, runtime.Version())
	return nil
}
