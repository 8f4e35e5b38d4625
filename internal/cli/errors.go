// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for filescout commands.
//
// Handlers always return errors and let main decide how to display them.
// Errors a handler has already shown to the user are marked as reported.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jeranaias/filescout/internal/config"
	"github.com/jeranaias/filescout/internal/history"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitSearchError indicates the search ended without a final result
	ExitSearchError = 9
	// ExitInterrupted indicates the user interrupted the command
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "history", "config")
	Action  string // Action being performed (e.g., "clear", "init")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents invalid user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// SearchFailedError is returned when a search produced no final result.
// Errors holds the descriptions already shown to the user.
type SearchFailedError struct {
	Errors []string
	Err    error // context error when the search was cut short
}

func (e *SearchFailedError) Error() string {
	return "search failed: " + strings.Join(e.Errors, "; ")
}

func (e *SearchFailedError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// IsReported reports whether err was already printed by the command.
func IsReported(err error) bool {
	var sfe *SearchFailedError
	return errors.As(err, &sfe)
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		verr *ValidationError
		cerr config.ValidateErrors
		sfe  *SearchFailedError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &verr), errors.Is(err, history.ErrInvalidKind):
		return ExitUsageError
	case errors.As(err, &cerr):
		return ExitConfigError
	case errors.As(err, &sfe):
		return ExitSearchError
	case errors.Is(err, fs.ErrNotExist):
		return ExitNotFoundError
	default:
		return ExitGeneralError
	}
}
