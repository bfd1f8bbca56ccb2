package source

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrInitialization means the transport is unavailable for the session.
	ErrInitialization = errors.New("bluetooth unavailable")
	// ErrSourceUnavailable is a transient failure to reach the transport.
	ErrSourceUnavailable = errors.New("device source unavailable")
	// ErrConnection means the transport rejected a connection change.
	ErrConnection = errors.New("connection failed")
)

// Error describes a failed Source operation.
type Error struct {
	Op       string // "initialize", "list", "scan", "toggle", "battery", "rename"
	DeviceID string // empty for operations not tied to one device
	Kind     error  // one of the Err* kinds above
	Err      error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Op
	if e.DeviceID != "" {
		msg += " " + e.DeviceID
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds an *Error of the given kind with a formatted cause.
func Errorf(op, id string, kind error, format string, args ...any) *Error {
	return &Error{Op: op, DeviceID: id, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap builds an *Error of the given kind around err.
func Wrap(op, id string, kind error, err error) *Error {
	return &Error{Op: op, DeviceID: id, Kind: kind, Err: err}
}
