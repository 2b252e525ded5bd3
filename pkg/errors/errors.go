// Package errors implements the error taxonomy from spec.md §7: a small
// set of sentinel kinds, an AppError wrapper that carries the HTTP status
// and a caller-facing message, and a status mapper the HTTP surface uses
// to turn any error into a response code without ever panicking the
// handling goroutine.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInputMalformed       = errors.New("input malformed")
	ErrDuplicateExtID       = errors.New("duplicate ext_id")
	ErrIndexIOError         = errors.New("index io error")
	ErrIndexVersionMismatch = errors.New("index version mismatch")
	ErrQueryMalformed       = errors.New("query malformed")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInternal             = errors.New("internal error")
	ErrDocumentNotFound     = errors.New("document not found")
)

// AppError pairs a sentinel kind with a caller-facing message and the HTTP
// status it maps to.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps sentinel with a status code and message.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

// Newf is New with a formatted message.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{Err: sentinel, Message: fmt.Sprintf(format, args...), StatusCode: statusCode}
}

// HTTPStatusCode maps any error to the HTTP status the server should
// respond with, per spec.md §7's taxonomy.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrQueryMalformed), errors.Is(err, ErrInputMalformed):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrIndexVersionMismatch), errors.Is(err, ErrIndexIOError):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
