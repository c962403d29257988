package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure so edges can map it to a transport shape:
// an HTTP status on the admin surface, a {success:false, message} response
// on the live channel.
type ErrorCode string

const (
	CodeNotFound        ErrorCode = "not_found"
	CodeUnauthorized    ErrorCode = "unauthorized"
	CodeConflict        ErrorCode = "conflict"
	CodeInvalidArgument ErrorCode = "invalid_argument"
	CodeInternal        ErrorCode = "internal"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewNotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func NewUnauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

func NewConflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

func NewInvalidArgument(msg string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: msg}
}

func NewInternal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}

// CodeOf extracts the taxonomy code from err, or CodeInternal for anything
// that is not a *types.Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
