package main

import (
	"context"
	"errors"

	"github.com/JianYang-Lab/SlurmSlim/internal/estimate"
	"github.com/JianYang-Lab/SlurmSlim/internal/jobscript"
	"github.com/JianYang-Lab/SlurmSlim/internal/llm"
	"github.com/JianYang-Lab/SlurmSlim/internal/memsize"
)

// Exit codes per failure kind.
const (
	exitOK          = 0
	exitError       = 1
	exitFileAccess  = 2
	exitUnavailable = 3
	exitTimeout     = 4
	exitUnparsable  = 5
)

// HintedError wraps an error with a user-facing recovery hint.
type HintedError struct {
	Err  error
	Hint string
}

func (h *HintedError) Error() string { return h.Err.Error() }
func (h *HintedError) Unwrap() error { return h.Err }

// exitCode maps a pipeline error to its documented exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, jobscript.ErrFileAccess):
		return exitFileAccess
	case errors.Is(err, llm.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return exitTimeout
	case errors.Is(err, llm.ErrUnavailable), errors.Is(err, estimate.ErrToolServer):
		return exitUnavailable
	case errors.Is(err, memsize.ErrNoQuantity):
		return exitUnparsable
	default:
		return exitError
	}
}

// hintWrap attaches a recovery hint for the common failure kinds.
func hintWrap(err error) error {
	if err == nil {
		return nil
	}
	var hint string
	switch {
	case errors.Is(err, jobscript.ErrFileAccess):
		hint = "Check the script path; it must be a readable regular file."
	case errors.Is(err, estimate.ErrToolServer):
		hint = "Check the tool server command ('slurmslim config get server_command'), or re-run with --no-tools."
	case errors.Is(err, llm.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		hint = "Increase --timeout (or SLURMSLIM_TIMEOUT_SECONDS); reasoning models can take minutes."
	case errors.Is(err, llm.ErrUnavailable):
		hint = "Run 'slurmslim doctor --ping' to probe the endpoint, and check base_url and your API key."
	case errors.Is(err, memsize.ErrNoQuantity):
		hint = "Re-run with --verbose to inspect the model reply, or try a different --model."
	default:
		return err
	}
	return &HintedError{Err: err, Hint: hint}
}
