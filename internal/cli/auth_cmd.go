// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/model"
)

// minPasswordLength matches the server's registration rule.
const minPasswordLength = 6

// =============================================================================
// PROMPTS
// =============================================================================

// prompter reads answers from the user. Passwords are read without echo
// when stdin is a terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	tty bool
}

func newPrompter(in io.Reader, out io.Writer, tty bool) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out, tty: tty}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, PromptStyle.Render(label))
	s, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(s), nil
}

func (p *prompter) password(label string) (string, error) {
	if !p.tty {
		return p.line(label)
	}
	fmt.Fprint(p.out, PromptStyle.Render(label))
	passBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(passBytes)), nil
}

// =============================================================================
// LOGIN / REGISTER
// =============================================================================

// HandleLogin handles "confidant login".
func HandleLogin(args Args) error {
	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()
	return runLogin(context.Background(), env, args, newPrompter(env.In, env.ErrOut, IsTTY()))
}

// HandleRegister handles "confidant register".
func HandleRegister(args Args) error {
	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()
	return runRegister(context.Background(), env, args, newPrompter(env.In, env.ErrOut, IsTTY()))
}

func runLogin(ctx context.Context, env *Env, args Args, p *prompter) error {
	email := args.Email
	var err error
	if email == "" {
		if email, err = p.line("Email: "); err != nil {
			return err
		}
	}
	password, err := p.password("Password: ")
	if err != nil {
		return err
	}
	if email == "" || password == "" {
		return usageErrorf("email and password are required")
	}

	res, err := env.Client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %s: %w", api.Reason(err), err)
	}
	return finishSignIn(env, args, "login", res)
}

func runRegister(ctx context.Context, env *Env, args Args, p *prompter) error {
	var err error
	email := args.Email
	if email == "" {
		if email, err = p.line("Email: "); err != nil {
			return err
		}
	}
	username := args.Username
	if username == "" {
		if username, err = p.line("Username: "); err != nil {
			return err
		}
	}
	password, err := p.password("Password: ")
	if err != nil {
		return err
	}
	confirm, err := p.password("Confirm password: ")
	if err != nil {
		return err
	}

	switch {
	case email == "" || username == "":
		return usageErrorf("email and username are required")
	case len(password) < minPasswordLength:
		return usageErrorf("password must be at least %d characters", minPasswordLength)
	case password != confirm:
		return usageErrorf("passwords do not match")
	}

	res, err := env.Client.Register(ctx, email, username, password)
	if err != nil {
		return fmt.Errorf("registration failed: %s: %w", api.Reason(err), err)
	}
	return finishSignIn(env, args, "register", res)
}

func finishSignIn(env *Env, args Args, command string, res *api.AuthResult) error {
	if err := env.Session.Save(res); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	env.Logger.Info("signed in", "user_id", res.User.Key())

	if args.JSON {
		return NewJSONResponse(command, userData(env, res.User)).Write(env.Out)
	}
	if !args.Quiet {
		fmt.Fprintf(env.Out, "%s Signed in as %s\n", SuccessStyle.Render("[OK]"), displayName(res.User))
	}
	return nil
}

// =============================================================================
// LOGOUT / WHOAMI
// =============================================================================

// HandleLogout handles "confidant logout".
func HandleLogout(args Args) error {
	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()
	return runLogout(env, args)
}

func runLogout(env *Env, args Args) error {
	wasSignedIn := env.Session.Token() != ""
	if err := env.Session.Logout(); err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("logout", map[string]bool{"signed_out": wasSignedIn}).Write(env.Out)
	}
	if wasSignedIn {
		fmt.Fprintln(env.Out, SuccessStyle.Render("[OK]")+" Signed out.")
	} else {
		fmt.Fprintln(env.Out, DimStyle.Render("You were not signed in."))
	}
	return nil
}

// HandleWhoami handles "confidant whoami".
func HandleWhoami(args Args) error {
	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()
	return runWhoami(context.Background(), env, args)
}

func runWhoami(ctx context.Context, env *Env, args Args) error {
	user, err := env.RequireUser(ctx)
	if err != nil {
		return err
	}

	data := userData(env, user)
	if args.JSON {
		return NewJSONResponse("whoami", data).Write(env.Out)
	}
	fmt.Fprintln(env.Out, labelValue("User", displayName(user)))
	fmt.Fprintln(env.Out, labelValue("ID", user.Key()))
	if data.ExpiresAt != "" {
		fmt.Fprintln(env.Out, labelValue("Token expires", data.ExpiresAt))
	}
	return nil
}

func userData(env *Env, u model.User) UserData {
	data := UserData{ID: u.ID, Email: u.Email, Username: u.Username}
	if exp, ok := env.Session.ExpiresAt(); ok {
		data.ExpiresAt = exp.Local().Format(time.RFC3339)
	}
	return data
}

func displayName(u model.User) string {
	switch {
	case u.Username != "" && u.Email != "":
		return u.Username + " (" + u.Email + ")"
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}
