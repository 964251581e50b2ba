// Package errs defines the error taxonomy shared across the audio runtime
// and its control surface. Every operation that can fail in a way the
// caller should branch on returns a *Error carrying one of the Kinds
// below; everything else is a plain wrapped error.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed. The set is closed: control
// surfaces map each Kind to a canonical status code (see httpapi).
type Kind int

const (
	// Unknown is never returned directly; it's the zero value guard.
	Unknown Kind = iota
	InvalidArgument
	IllegalState
	NotFound
	Conflict
	NotSupported
	Timeout
	External
	Cancelled
	AlreadyDisposed
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case IllegalState:
		return "IllegalState"
	case NotFound:
		return "NotFound"
	case Conflict:
		return "Conflict"
	case NotSupported:
		return "NotSupported"
	case Timeout:
		return "Timeout"
	case External:
		return "External"
	case Cancelled:
		return "Cancelled"
	case AlreadyDisposed:
		return "AlreadyDisposed"
	default:
		return "Unknown"
	}
}

// Error is a Kind-tagged error with an optional wrapped cause.
type Error struct {
	Kind Kind
	Op   string // short operation name, e.g. "source.Play"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a *Error with no wrapped cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds a *Error that wraps cause.
func Wrap(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or Unknown if err isn't a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
