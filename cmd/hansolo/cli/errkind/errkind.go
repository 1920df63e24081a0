// Package errkind defines the domain error taxonomy shared by the git
// adapter, the forge adapter, the session store, and the workflow tools.
// Adapters classify raw failures into one of these kinds; tool bodies
// propagate them unchanged and fold them into the ToolResult.
package errkind

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure. The set is closed; anything that does
// not fit is Internal.
type Kind string

const (
	PreflightFailed   Kind = "preflight_failed"
	PostflightFailed  Kind = "postflight_failed"
	InvalidTransition Kind = "invalid_transition"
	Busy              Kind = "busy"
	NotFound          Kind = "not_found"
	AlreadyExists     Kind = "already_exists"
	Conflict          Kind = "conflict"
	TimedOut          Kind = "timed_out"
	Cancelled         Kind = "cancelled"
	Unauthorized      Kind = "unauthorized"
	Unsupported       Kind = "unsupported"
	Internal          Kind = "internal"
)

// Error is a classified domain error. Suggestion, when set, is advisory text
// for the caller ("run 'hansolo ship' again after resolving conflicts").
type Error struct {
	Kind       Kind
	Message    string
	Suggestion string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error with a plain message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithSuggestion returns a copy of e carrying advisory recovery text.
func (e *Error) WithSuggestion(s string) *Error {
	clone := *e
	clone.Suggestion = s
	return &clone
}

// KindOf returns the Kind of err, or Internal if err carries no kind.
// A nil error has no kind; callers must check err != nil first.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}
