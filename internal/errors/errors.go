// Package errors defines the closed outcome taxonomy shared by the launcher
// and in-game flows. Flow failures are values of a small Kind enum so that
// callers (and parent processes, via exit codes) are forced to branch on
// every distinct outcome instead of pattern-matching error strings.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a flow failure.
type Kind int

const (
	// Generic is any failure without a more specific classification.
	Generic Kind = iota
	// Transient marks failures that are expected to clear on the next tick
	// (capture failed, template not visible yet). Never escalated on its own.
	Transient
	// InvalidCredentials is terminal and must not be retried: the launcher
	// showed an explicit login-error indicator for this account.
	InvalidCredentials
	// GameStartTimeout means the launcher accepted the credentials but the
	// game client window never appeared within the deadline.
	GameStartTimeout
	// NoProgress means the login loop finished without a single real state
	// transition; launching the game would risk skipping the account.
	NoProgress
	// TimeBudget means the in-game flow exhausted its wall-clock budget
	// without reaching a terminal scene. Distinct from success by contract.
	TimeBudget
	// Config is fatal at startup (e.g. an empty template index).
	Config
	// Canceled means a stop was requested via hotkey or context.
	Canceled
)

// Process exit codes for the per-account driver and the in-game flow.
// Parent processes branch on these; keep them stable.
const (
	ExitOK                 = 0
	ExitFailure            = 1
	ExitTimeBudget         = 2
	ExitInvalidCredentials = 3
	ExitGameStart          = 4
)

var kindNames = map[Kind]string{
	Generic:            "generic",
	Transient:          "transient",
	InvalidCredentials: "invalid_credentials",
	GameStartTimeout:   "game_start_timeout",
	NoProgress:         "no_progress",
	TimeBudget:         "time_budget",
	Config:             "config",
	Canceled:           "canceled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ExitCode maps a Kind to the process exit code contract.
func (k Kind) ExitCode() int {
	switch k {
	case InvalidCredentials:
		return ExitInvalidCredentials
	case GameStartTimeout:
		return ExitGameStart
	case TimeBudget:
		return ExitTimeBudget
	default:
		return ExitFailure
	}
}

// KindFromExitCode is the inverse mapping used by parent processes when
// classifying a child's return code. The bool is false for ExitOK.
func KindFromExitCode(rc int) (Kind, bool) {
	switch rc {
	case ExitOK:
		return Generic, false
	case ExitInvalidCredentials:
		return InvalidCredentials, true
	case ExitGameStart:
		return GameStartTimeout, true
	case ExitTimeBudget:
		return TimeBudget, true
	default:
		return Generic, true
	}
}

// FlowError is the base error type carried between flow stages.
type FlowError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *FlowError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Cause != nil {
		s += fmt.Sprintf(": %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *FlowError) Unwrap() error { return e.Cause }

// New creates a FlowError with the given kind and message.
func New(kind Kind, msg string) *FlowError {
	return &FlowError{Kind: kind, Message: msg}
}

// Newf creates a FlowError with a formatted message.
func Newf(kind Kind, format string, args ...any) *FlowError {
	return &FlowError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a kind and message.
func Wrap(err error, kind Kind, msg string) *FlowError {
	return &FlowError{Kind: kind, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) *FlowError {
	return &FlowError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// KindOf extracts the Kind from an error chain. Plain errors are Generic.
func KindOf(err error) Kind {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Generic
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode maps an error to the process exit code contract. nil is ExitOK.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return KindOf(err).ExitCode()
}

// IsRetryable reports whether the outer per-account driver may retry the
// attempt. InvalidCredentials is never retryable; retrying it only wastes
// time and the record should be set aside instead.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case Transient, GameStartTimeout:
		return true
	default:
		return false
	}
}
