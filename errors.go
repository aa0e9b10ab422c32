package allocsnap

import (
	"errors"
	"fmt"
)

// Kind is the high-level error category surfaced by the core pipeline.
type Kind string

const (
	KindDecodeError      Kind = "DecodeError"
	KindDeviceOutOfRange Kind = "DeviceOutOfRange"
	KindEmptyDevice      Kind = "EmptyDevice"
	KindIOError          Kind = "IOError"
	KindStorageError     Kind = "StorageError"
)

// Error is a structured pipeline error carrying the operation that failed,
// a high-level Kind, a human message, and the wrapped cause.
type Error struct {
	Op    string // component that raised it: "snapshot", "writer", ...
	Kind  Kind
	Msg   string
	Inner error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return fmt.Sprintf("allocsnap: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("allocsnap: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is reports whether target matches this error's Kind, so callers can write
// errors.Is(err, &allocsnap.Error{Kind: allocsnap.KindEmptyDevice}).
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// NewError creates a structured error for op/kind/msg with no wrapped cause.
func NewError(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// WrapError wraps inner with pipeline context, preserving its Kind if it is
// already a structured *Error.
func WrapError(op string, kind Kind, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ie, ok := inner.(*Error); ok {
		return &Error{Op: op, Kind: ie.Kind, Msg: ie.Msg, Inner: ie.Inner}
	}
	return &Error{Op: op, Kind: kind, Msg: inner.Error(), Inner: inner}
}

// IsKind reports whether err (or something it wraps) is a structured Error
// of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
