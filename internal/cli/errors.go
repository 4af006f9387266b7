// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/catalog"
	"github.com/jeranaias/confidant/internal/config"
	"github.com/jeranaias/confidant/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitAuthError    = 4
	ExitNetworkError = 5
	ExitNotFound     = 7
)

// ErrSessionExpired is returned when the server rejected the stored token.
var ErrSessionExpired = errors.New("your session has expired; run `confidant login`")

// UsageError reports a malformed command line.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// reportedError wraps an error the command has already shown to the user.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

// usageErrorf builds a UsageError.
func usageErrorf(format string, args ...interface{}) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var netErr *api.NetworkError
	var cfgErr config.ValidateErrors
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.Is(err, api.ErrAuth),
		errors.Is(err, session.ErrNotSignedIn),
		errors.Is(err, ErrSessionExpired):
		return ExitAuthError
	case errors.As(err, &netErr):
		return ExitNetworkError
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.Is(err, catalog.ErrUnknownPersona), errors.Is(err, api.ErrNotFound):
		return ExitNotFound
	default:
		return ExitGeneralError
	}
}

// DisplayError prints err for humans, or as a JSON envelope in JSON mode.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	var reported reportedError
	if err == nil || errors.As(err, &reported) {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Write(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), describeError(err))
}

// describeError turns client errors into a sentence for the terminal.
func describeError(err error) string {
	var netErr *api.NetworkError
	switch {
	case errors.Is(err, session.ErrNotSignedIn):
		return "You are not signed in. Run `confidant login` first."
	case errors.Is(err, ErrSessionExpired), errors.Is(err, api.ErrAuth):
		return "Your session has expired. Run `confidant login` to sign in again."
	case errors.As(err, &netErr):
		return api.Reason(err)
	default:
		return err.Error()
	}
}

// Exit prints err and exits with its code.
func Exit(command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	out := io.Writer(os.Stderr)
	if jsonMode {
		out = os.Stdout
	}
	DisplayError(out, command, err, jsonMode)
	os.Exit(ExitCode(err))
}
