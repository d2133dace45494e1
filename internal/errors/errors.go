package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig = "CONFIG"
	ErrJob    = "JOB"
	ErrLaunch = "LAUNCH"
	ErrFrame  = "FRAME"
	ErrExport = "EXPORT"
	ErrSample = "SAMPLE"
	ErrSSH    = "SSH"
)

// Sentinel errors for the session failure taxonomy. The fatal ones end the
// session before any collector launches; the rest are contained at the node
// boundary and never abort the session.
var (
	// ErrJobNeverStarted: the job reached a terminal state while we were
	// still waiting for it to run.
	ErrJobNeverStarted = errors.New("job never started")

	// ErrNoNodesAllocated: the job is running but reports no nodes.
	ErrNoNodesAllocated = errors.New("no nodes allocated")

	// ErrNodeLaunchFailed: a collector could not be started on one node.
	// The node is marked disconnected and the session proceeds.
	ErrNodeLaunchFailed = errors.New("node launch failed")

	// ErrFrameParse: a malformed wire record. The frame is dropped and the
	// reader continues.
	ErrFrameParse = errors.New("frame parse error")

	// ErrCapabilityUnavailable: a sampler capability (e.g. GPU) is not
	// present on this node. The frame field is omitted.
	ErrCapabilityUnavailable = errors.New("sampler capability unavailable")
)

// Error represents a structured error with code, message, suggestion, and optional cause.
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrJob code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrJob,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface with formatted output.
func (e *Error) Error() string {
	var b strings.Builder

	// First line: failure symbol + main message
	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	// Include cause if present (why it failed)
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	// Include suggestion if present (how to fix)
	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var jsErr *Error
	if errors.As(err, &jsErr) {
		return jsErr.Code == code
	}
	return false
}

// IsFatal reports whether an error should end the session before any
// collector launches (job never ran, or ran with zero nodes).
func IsFatal(err error) bool {
	return errors.Is(err, ErrJobNeverStarted) || errors.Is(err, ErrNoNodesAllocated)
}
