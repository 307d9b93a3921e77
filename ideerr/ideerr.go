// Package ideerr defines the error taxonomy shared by the bridge, the
// debug orchestrator and the MCP tool layer. Callers branch on the
// error kind rather than on message text.
package ideerr

import (
	"errors"
	"fmt"
	"time"
)

// Kind names a failure category.
type Kind string

const (
	// KindInvalidState reports an operation issued while the session was
	// in a state that does not permit it.
	KindInvalidState Kind = "invalid_state"
	// KindRemoteTimeout reports a remote call that produced no response
	// within its deadline.
	KindRemoteTimeout Kind = "remote_timeout"
	// KindTimeout reports a local wait (polling, startup) that ran out
	// of time.
	KindTimeout Kind = "timeout"
	// KindConnectionLost reports that the editor connection dropped.
	KindConnectionLost Kind = "connection_lost"
	// KindRemoteError reports a structured error returned by the editor.
	KindRemoteError Kind = "remote_error"
	// KindLaunchFailed reports that the debug adapter rejected a launch.
	KindLaunchFailed Kind = "launch_failed"
	// KindNotFound reports a path (or session) that does not exist.
	KindNotFound Kind = "not_found"
	// KindOutsideWorkspace reports a path that resolves outside the
	// workspace root.
	KindOutsideWorkspace Kind = "outside_workspace"
)

// Error is the concrete error type for all taxonomy kinds.
type Error struct {
	Kind    Kind
	Message string

	// State holds the session state that rejected the operation, set
	// for KindInvalidState only.
	State string

	// Code and Details carry the remote error payload, set for
	// KindRemoteError only.
	Code    string
	Details string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or "" if err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err (or any error it wraps) has kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// InvalidState reports op rejected while the session is in state.
func InvalidState(op string, state string) *Error {
	return &Error{
		Kind:    KindInvalidState,
		Message: fmt.Sprintf("cannot %s while session is %s", op, state),
		State:   state,
	}
}

// RemoteTimeout reports that method produced no response within timeout.
func RemoteTimeout(method string, timeout time.Duration) *Error {
	return &Error{
		Kind:    KindRemoteTimeout,
		Message: fmt.Sprintf("remote call %s timed out after %s", method, timeout),
	}
}

// Timeout reports a local wait that exceeded its deadline.
func Timeout(what string, deadline time.Duration) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("%s did not complete within %s", what, deadline),
	}
}

// ConnectionLost reports that the editor connection dropped, wrapping
// the underlying transport error if any.
func ConnectionLost(cause error) *Error {
	return &Error{
		Kind:    KindConnectionLost,
		Message: "editor connection lost",
		Err:     cause,
	}
}

// Remote reports a structured error returned by the editor.
func Remote(code string, message string, details string) *Error {
	return &Error{
		Kind:    KindRemoteError,
		Message: message,
		Code:    code,
		Details: details,
	}
}

// LaunchFailed reports a rejected debug launch.
func LaunchFailed(reason string, cause error) *Error {
	return &Error{
		Kind:    KindLaunchFailed,
		Message: reason,
		Err:     cause,
	}
}

// NotFound reports a missing path or unknown identifier.
func NotFound(what string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", what),
	}
}

// OutsideWorkspace reports a path that escapes the workspace root.
func OutsideWorkspace(path string, root string) *Error {
	return &Error{
		Kind:    KindOutsideWorkspace,
		Message: fmt.Sprintf("path %s is outside workspace %s", path, root),
	}
}
