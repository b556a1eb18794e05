// Package errs holds the error type shown to mcpagent users.
package errs

import (
	"errors"
	"fmt"
)

// UserErrorf is a user-facing error.
// It exists mostly to keep linters quiet about capitalized error strings.
func UserErrorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// Error wraps an underlying error with a user-facing reason.
//
// Reason is short and actionable; Err carries the technical details.
// When Err is nil, Error() falls back to Reason.
type Error struct {
	Err    error
	Reason string
}

// Wrap creates an Error with the given underlying error and reason.
func Wrap(err error, reason string) Error {
	return Error{Err: err, Reason: reason}
}

// Wrapf creates an Error with the given underlying error and a formatted reason.
func Wrapf(err error, format string, a ...any) Error {
	return Error{Err: err, Reason: fmt.Sprintf(format, a...)}
}

func (e Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Reason
}

func (e Error) Unwrap() error {
	return e.Err
}

// Message renders err for users: the reason of the first Error in the chain,
// followed by the details.
func Message(err error) string {
	var e Error
	if !errors.As(err, &e) || e.Reason == "" {
		return err.Error()
	}
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + " (" + e.Err.Error() + ")"
}
