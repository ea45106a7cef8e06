package game

import "errors"

// Code is a machine-readable rejection reason.
type Code string

const (
	CodeValidation   Code = "VALIDATION"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInvalidState Code = "INVALID_STATE"
	CodeNotYourTurn  Code = "NOT_YOUR_TURN"
	CodeOutOfRange   Code = "OUT_OF_RANGE"
	CodeColumnFull   Code = "COLUMN_FULL"
	CodeCapacity     Code = "CAPACITY"
)

// Error rejects a single action. It never implies the session was modified.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error carrying the same code, so the sentinels below work
// with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewError builds a rejection with a caller-supplied message.
func NewError(code Code, message string) *Error { return newError(code, message) }

var (
	ErrValidation   = newError(CodeValidation, "invalid input")
	ErrNotFound     = newError(CodeNotFound, "game not found")
	ErrInvalidState = newError(CodeInvalidState, "game not active")
	ErrNotYourTurn  = newError(CodeNotYourTurn, "not your turn")
	ErrOutOfRange   = newError(CodeOutOfRange, "invalid column")
	ErrColumnFull   = newError(CodeColumnFull, "column is full")
	ErrCapacity     = newError(CodeCapacity, "server is at capacity")
)

// CodeOf reports the code of err, or "" when err is not a game rejection.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
