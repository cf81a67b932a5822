// Package errors holds the application error taxonomy shared by the realtime
// core and its HTTP/WebSocket surface.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies an AppError.
type Code string

const (
	CodeAuthentication   Code = "AUTHENTICATION_ERROR"
	CodeForbidden        Code = "FORBIDDEN"
	CodeMalformedMessage Code = "MALFORMED_MESSAGE"
	CodeAwardValidation  Code = "AWARD_VALIDATION_ERROR"
	CodeNotFound         Code = "NOT_FOUND"
	CodeDelivery         Code = "BROADCAST_DELIVERY_ERROR"
	CodeInternal         Code = "INTERNAL_ERROR"
)

type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches any *AppError carrying the same code, so sentinel values built
// with New can be used with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code Code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Validation builds an AwardValidationError.
func Validation(format string, args ...any) *AppError {
	return New(CodeAwardValidation, fmt.Sprintf(format, args...))
}

// NotFound builds a validation failure for an unknown referenced record.
func NotFound(format string, args ...any) *AppError {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

// Internal wraps an unexpected storage or coordination failure.
func Internal(err error, message string) *AppError {
	return Wrap(err, CodeInternal, message)
}

// CodeOf returns the code of the first AppError in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code Code) bool {
	var ae *AppError
	return stderrors.As(err, &ae) && ae.Code == code
}

// IsValidation reports whether err is a rejected stimulus (bad input, unknown
// reference) as opposed to a failure of the system.
func IsValidation(err error) bool {
	switch CodeOf(err) {
	case CodeAwardValidation, CodeNotFound:
		return true
	}
	return false
}

// PublicMessage is the text safe to show a client. Internal errors are reduced
// to a generic message.
func PublicMessage(err error) string {
	var ae *AppError
	if !stderrors.As(err, &ae) || ae.Code == CodeInternal {
		return "internal server error"
	}
	return ae.Message
}
