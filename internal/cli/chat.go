// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/controller"
	"github.com/jeranaias/confidant/internal/model"
	"github.com/jeranaias/confidant/internal/render"
	"github.com/jeranaias/confidant/internal/ui/styles"
)

// HistoryFileName is the REPL input history inside the data directory.
const HistoryFileName = "chat_history"

// loadTimeout bounds the history fetch when the REPL starts.
const loadTimeout = 30 * time.Second

// errLeave ends the REPL without an error.
var errLeave = errors.New("leave chat")

// =============================================================================
// CHAT CLI (INPUT HISTORY)
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
}

// ChatCLI provides input history and line editing for the REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI whose history lives in historyFile.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{line: line, historyFile: historyFile}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with arrow-key history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes the history file with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// chatSession is one REPL conversation with a persona.
type chatSession struct {
	env      *Env
	ctrl     *controller.Controller
	persona  model.Persona
	renderer *render.Renderer
	args     Args
	out      io.Writer
}

// HandleChat handles "confidant chat", the line-mode client.
func HandleChat(args Args) error {
	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()
	return startChat(context.Background(), env, args)
}

// startChat signs in, resolves the persona and runs the REPL.
func startChat(ctx context.Context, env *Env, args Args) error {
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

	s := &chatSession{
		env:      env,
		ctrl:     ctrl,
		persona:  persona,
		renderer: env.Renderer(GetTerminalWidth()),
		args:     args,
		out:      env.Out,
	}

	input := NewChatCLI(filepath.Join(env.DataDir, HistoryFileName))
	defer input.Close()

	return s.run(ctx, input)
}

// run is the REPL loop.
func (s *chatSession) run(ctx context.Context, in lineReader) error {
	if !s.args.Quiet {
		s.printWelcome()
	}
	if err := s.loadHistory(ctx); err != nil {
		return err
	}

	prompt := PromptStyle.Render("you> ")
	for {
		input, err := in.ReadInput(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			err = s.handleSlashCommand(ctx, input, in)
		} else if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			err = errLeave
		} else {
			err = s.send(ctx, func(ctx context.Context) (*controller.Exchange, error) {
				return s.ctrl.Submit(ctx, input)
			})
		}

		switch {
		case errors.Is(err, errLeave):
			return nil
		case errors.Is(err, api.ErrAuth):
			return ErrSessionExpired
		case err != nil:
			fmt.Fprintf(s.out, "%s %s\n", ErrorStyle.Render("[Error]"), describeError(err))
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// send runs one exchange. Ctrl+C cancels the request and marks the message
// failed so it can be retried.
func (s *chatSession) send(ctx context.Context, exchange func(context.Context) (*controller.Exchange, error)) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if !s.args.Quiet {
		fmt.Fprintln(s.out, DimStyle.Render(s.persona.Name+" is typing..."))
	}

	ex, err := exchange(ctx)
	if err != nil {
		if errors.Is(err, controller.ErrValidation) {
			return nil
		}
		if errors.Is(err, api.ErrAuth) {
			return err
		}
		fmt.Fprintf(s.out, "%s %s\n", ErrorStyle.Render(styles.StatusIndicators.Failed+" not delivered:"), api.Reason(err))
		fmt.Fprintln(s.out, DimStyle.Render("Type /retry to send it again."))
		return nil
	}

	if ex.NewConversation {
		s.env.Logger.Debug("conversation started", "persona", s.persona.ID, "conversation_id", ex.ConversationID)
	}
	s.printMessage(ex.Reply)
	return nil
}

func (s *chatSession) loadHistory(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	if err := s.ctrl.LoadExisting(ctx); err != nil {
		if errors.Is(err, api.ErrAuth) {
			return ErrSessionExpired
		}
		fmt.Fprintf(s.out, "%s could not load the conversation: %s\n", WarningStyle.Render("[!]"), api.Reason(err))
		return nil
	}

	msgs := s.ctrl.Store().Messages()
	if len(msgs) == 0 {
		if !s.args.Quiet {
			fmt.Fprintln(s.out, DimStyle.Render("Say hello to "+s.persona.Name+"."))
		}
		return nil
	}
	for _, m := range msgs {
		s.printMessage(m)
	}
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (s *chatSession) handleSlashCommand(ctx context.Context, input string, in lineReader) error {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		return errLeave

	case "/help", "/h", "/?":
		s.printHelp()
		return nil

	case "/retry", "/r":
		id, ok := s.ctrl.LastFailed()
		if !ok {
			fmt.Fprintln(s.out, DimStyle.Render("Nothing to retry."))
			return nil
		}
		return s.send(ctx, func(ctx context.Context) (*controller.Exchange, error) {
			return s.ctrl.Retry(ctx, id)
		})

	case "/clear", "/forget":
		answer, err := in.ReadInput(WarningStyle.Render("Make " + s.persona.Name + " forget this conversation? [y/N] "))
		if err != nil {
			return nil
		}
		if ok, _ := ParseBoolString(answer); !ok {
			return nil
		}
		ack, err := s.ctrl.ClearMemory(ctx)
		if err != nil {
			return err
		}
		text := s.persona.Name + " has forgotten this conversation."
		if ack != nil && ack.Message != "" {
			text = ack.Message
		}
		fmt.Fprintln(s.out, SuccessStyle.Render("[OK]")+" "+text)
		return nil

	case "/history":
		return s.loadHistory(ctx)

	case "/export", "/save":
		format := ""
		if len(fields) > 1 {
			format = fields[1]
		}
		exporter, opts, err := exporterFor(format, "", false)
		if err != nil {
			return err
		}
		user, _ := s.env.Session.User()
		path, _, err := writeTranscript(ctx, s.ctrl, s.persona, user, exporter, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, SuccessStyle.Render("[OK]")+" Saved to "+path)
		return nil

	case "/logout":
		if err := s.env.Session.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(s.out, SuccessStyle.Render("[OK]")+" Signed out.")
		return errLeave

	default:
		return usageErrorf("unknown command %s (try /help)", fields[0])
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

func (s *chatSession) printWelcome() {
	title := s.persona.Name
	if s.persona.Title != "" {
		title += " - " + s.persona.Title
	}
	fmt.Fprintln(s.out, TitleStyle.Render(title))
	if s.persona.Description != "" {
		fmt.Fprintln(s.out, DimStyle.Render(s.persona.Description))
	}
	fmt.Fprintln(s.out, DimStyle.Render("Type /help for commands, /quit to leave."))
	fmt.Fprintln(s.out, SeparatorLine(min(GetTerminalWidth(), 60)))
}

func (s *chatSession) printHelp() {
	help := []struct{ cmd, desc string }{
		{"/retry", "Resend the last message that failed"},
		{"/clear", "Make " + s.persona.Name + " forget this conversation"},
		{"/history", "Reload and print the conversation"},
		{"/export [md|json]", "Save the conversation to a file"},
		{"/logout", "Sign out and leave"},
		{"/quit", "Leave (Ctrl+D also works)"},
	}
	for _, h := range help {
		fmt.Fprintln(s.out, LabelStyle.Render(h.cmd)+ValueStyle.Render(h.desc))
	}
}

func (s *chatSession) printMessage(m model.Message) {
	stamp := DimStyle.Render(m.CreatedAt.Local().Format("15:04"))
	if m.IsUser() {
		label := PromptStyle.Render("You") + " " + stamp
		switch m.Status {
		case model.StatusPending:
			label += " " + WarningStyle.Render(styles.StatusIndicators.Pending)
		case model.StatusFailed:
			label += " " + ErrorStyle.Render(styles.StatusIndicators.Failed+" not delivered")
		}
		fmt.Fprintln(s.out, label)
		fmt.Fprintln(s.out, m.Text)
		return
	}
	fmt.Fprintln(s.out, PersonaStyle.Render(s.persona.Name)+" "+stamp)
	fmt.Fprintln(s.out, s.renderer.Reply(m.Text))
	fmt.Fprintln(s.out)
}
