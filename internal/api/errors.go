package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jmcardle/go-chatserver/internal/types"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError(msg string) *ApiError {
	if msg == "" {
		msg = lower(http.StatusText(http.StatusBadRequest))
	}
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    msg,
	}
}

func NewNotFoundError(msg string) *ApiError {
	if msg == "" {
		msg = lower(http.StatusText(http.StatusNotFound))
	}
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    msg,
	}
}

func NewConflictError(msg string) *ApiError {
	if msg == "" {
		msg = lower(http.StatusText(http.StatusConflict))
	}
	return &ApiError{
		StatusCode: http.StatusConflict,
		Message:    msg,
	}
}

func NewUnauthorizedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Message:    lower(http.StatusText(http.StatusUnauthorized)),
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

// FromError maps a taxonomy error from the core onto an HTTP-status-coded
// response body.
func FromError(err error) *ApiError {
	switch types.CodeOf(err) {
	case types.CodeNotFound:
		return NewNotFoundError(err.Error())
	case types.CodeUnauthorized:
		return NewUnauthorizedError()
	case types.CodeConflict:
		return NewConflictError(err.Error())
	case types.CodeInvalidArgument:
		return NewBadRequestError(err.Error())
	default:
		return NewInternalServerError(err)
	}
}
