package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error carries an HTTP-style status alongside the underlying cause.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("app error (%d)", e.Status)
	}
	return "app error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, "not_found", fmt.Errorf(format, args...))
}

func BadRequest(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, "bad_request", fmt.Errorf(format, args...))
}

// Invalid marks a request that parsed but failed domain validation.
func Invalid(err error) *Error {
	return New(http.StatusBadRequest, "invalid_condition", err)
}

// Internal wraps a store or runtime failure, keeping the original message.
func Internal(op string, err error) *Error {
	if err == nil {
		err = errors.New("unknown error")
	}
	return New(http.StatusInternalServerError, "internal", fmt.Errorf("%s: %w", op, err))
}

// StatusOf returns the status carried by err, 500 for foreign errors and 200 for nil.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}
