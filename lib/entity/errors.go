package entity

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type of the entity layer. It carries a code (of type RetCode)
// and a message. Errors match by code, so
//
//	errors.Is(err, entity.ErrNotFound)
//
// is true for every not found error regardless of the message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("EntityError (code %s): %s", e.Code, e.Msg)
}

// Is matches entity errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new entity error with the given code and formatted message.
func NewError(code RetCode, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

var (
	ErrNotFound    = &Error{Code: RetCNotFound, Msg: "not found"}
	ErrDuplicateID = &Error{Code: RetCDuplicateID, Msg: "duplicate id"}
	ErrValidation  = &Error{Code: RetCValidation, Msg: "validation failed"}
	ErrBusy        = &Error{Code: RetCBusy, Msg: "busy"}
	ErrInternal    = &Error{Code: RetCInternal, Msg: "internal error"}
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCInternal    RetCode = iota // 0: The store failed or a state could not be encoded.
	RetCNotFound                   // 1: No record with this id.
	RetCDuplicateID                // 2: Create with an id that is already taken.
	RetCValidation                 // 3: Bad input (invalid id, undecodable cursor, ...).
	RetCBusy                       // 4: The record is locked by another writer.
)

func (c RetCode) String() string {
	switch c {
	case RetCInternal:
		return "Internal"
	case RetCNotFound:
		return "NotFound"
	case RetCDuplicateID:
		return "DuplicateID"
	case RetCValidation:
		return "Validation"
	case RetCBusy:
		return "Busy"
	default:
		return "Unknown"
	}
}

// internal wraps a store or codec failure, the cause stays reachable through errors.As/Is.
func internal(op, key string, err error) error {
	return fmt.Errorf("%s %q: %w", op, key, &wrapped{code: RetCInternal, err: err})
}

// wrapped is an internal error that matches ErrInternal and unwraps to its cause.
type wrapped struct {
	code RetCode
	err  error
}

func (w *wrapped) Error() string { return w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }
func (w *wrapped) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == w.code
}
