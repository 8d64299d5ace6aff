package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/toolbind/toolerr"
)

// Exit code constants for the CLI
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitError indicates a general error
	ExitError = 1
	// ExitRejected indicates a job order did not match the input schema
	ExitRejected = 2
	// ExitTimeout indicates the operation timed out
	ExitTimeout = 3
	// ExitCancelled indicates the operation was cancelled
	ExitCancelled = 4
	// ExitUsage indicates missing or contradictory arguments
	ExitUsage = 5
	// ExitConfigError indicates toolbind.yaml could not be loaded
	ExitConfigError = 10
	// ExitDocumentError indicates the tool document or a job order could not be used
	ExitDocumentError = 11
)

// cliError is an error with a specific exit code.
type cliError struct {
	code  int
	msg   string
	cause error
}

func (e *cliError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *cliError) Unwrap() error { return e.cause }

// handleError prints err to the command's error output and returns the exit code.
func handleError(cmd *cobra.Command, err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, context.Canceled) {
		cmd.PrintErrln("Operation cancelled")
		return ExitCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		cmd.PrintErrln("Operation timed out")
		return ExitTimeout
	}

	cmd.PrintErrln("Error:", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var cliErr *cliError
	if errors.As(err, &cliErr) {
		return cliErr.code
	}

	switch toolerr.CodeOf(err) {
	case toolerr.ErrCodeSchemaMismatch:
		return ExitRejected
	case toolerr.ErrCodeMissingContextMarker,
		toolerr.ErrCodeUnresolvedReference,
		toolerr.ErrCodeInvalidSchema,
		toolerr.ErrCodeParseError:
		return ExitDocumentError
	default:
		return ExitError
	}
}
