package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class of the query taxonomy.
type Code string

const (
	CodeInvalidIdentifier     Code = "InvalidIdentifier"
	CodeInvalidPredicate      Code = "InvalidPredicate"
	CodeInvalidRange          Code = "InvalidRange"
	CodeInvalidPayload        Code = "InvalidPayload"
	CodeAlreadyExecuted       Code = "AlreadyExecuted"
	CodeMissingConflictTarget Code = "MissingConflictTarget"
	CodeMissingFilter         Code = "MissingFilter"
	CodeNotExactlyOneRow      Code = "NotExactlyOneRow"
	CodePoolExhausted         Code = "PoolExhausted"
	CodeConstraintViolation   Code = "ConstraintViolation"
	CodeUnauthorized          Code = "Unauthorized"
	CodeUnknownProcedure      Code = "UnknownProcedure"
	CodeUpstreamDriverError   Code = "UpstreamDriverError"
)

// Sentinel errors for use with errors.Is. Matching is by code only.
var (
	ErrInvalidIdentifier     = &Error{Code: CodeInvalidIdentifier, Message: "invalid identifier"}
	ErrInvalidPredicate      = &Error{Code: CodeInvalidPredicate, Message: "invalid predicate"}
	ErrInvalidRange          = &Error{Code: CodeInvalidRange, Message: "invalid range"}
	ErrInvalidPayload        = &Error{Code: CodeInvalidPayload, Message: "invalid payload"}
	ErrAlreadyExecuted       = &Error{Code: CodeAlreadyExecuted, Message: "query already executed"}
	ErrMissingConflictTarget = &Error{Code: CodeMissingConflictTarget, Message: "upsert requires a conflict target"}
	ErrMissingFilter         = &Error{Code: CodeMissingFilter, Message: "mutation requires a filter"}
	ErrNotExactlyOneRow      = &Error{Code: CodeNotExactlyOneRow, Message: "expected exactly one row"}
	ErrPoolExhausted         = &Error{Code: CodePoolExhausted, Message: "connection pool exhausted"}
	ErrConstraintViolation   = &Error{Code: CodeConstraintViolation, Message: "constraint violation"}
	ErrUnauthorized          = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrUnknownProcedure      = &Error{Code: CodeUnknownProcedure, Message: "unknown procedure"}
	ErrUpstreamDriver        = &Error{Code: CodeUpstreamDriverError, Message: "upstream driver error"}
)

// Error is the error carried by a Response.
type Error struct {
	// Code is the taxonomy code.
	Code Code `json:"code" msgpack:"code"`

	// Message is the human-readable error message.
	Message string `json:"message" msgpack:"message"`

	// Details carries driver or parser detail, when any.
	Details string `json:"details,omitempty" msgpack:"details,omitempty"`

	// Hint suggests a fix to the caller.
	Hint string `json:"hint,omitempty" msgpack:"hint,omitempty"`

	// Constraint is the violated constraint for ConstraintViolation.
	Constraint string `json:"constraint,omitempty" msgpack:"constraint,omitempty"`

	// Cause is the underlying error. It never crosses the wire.
	Cause error `json:"-" msgpack:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Errorf creates an error with a formatted message.
func Errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error with the given code around cause.
func Wrap(code Code, cause error, message string) *Error {
	e := &Error{Code: code, Message: message, Cause: cause}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// AsError converts any error into an *Error. Context cancellation and
// unknown errors become UpstreamDriverError.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(CodeUpstreamDriverError, err, "query deadline exceeded")
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(CodeUpstreamDriverError, err, "query canceled")
	}
	return Wrap(CodeUpstreamDriverError, err, "database error")
}

// CodeOf returns the taxonomy code of err, or "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return AsError(err).Code
}

// Retryable reports whether the executor may retry a statement that failed
// with this code. UpstreamDriverError is further restricted to reads by the
// executor.
func (c Code) Retryable() bool {
	switch c {
	case CodePoolExhausted, CodeUpstreamDriverError:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the status the table endpoint answers with. Application
// outcomes such as NotExactlyOneRow stay 2xx.
func (c Code) HTTPStatus() int {
	switch c {
	case "":
		return http.StatusOK
	case CodeInvalidIdentifier, CodeInvalidPredicate, CodeInvalidRange, CodeInvalidPayload,
		CodeMissingConflictTarget, CodeMissingFilter, CodeAlreadyExecuted:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeUnknownProcedure:
		return http.StatusNotFound
	case CodePoolExhausted:
		return http.StatusServiceUnavailable
	case CodeNotExactlyOneRow, CodeConstraintViolation:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// IsNotExactlyOneRow checks if an error is a single-row violation.
func IsNotExactlyOneRow(err error) bool {
	return errors.Is(err, ErrNotExactlyOneRow)
}

// IsConstraintViolation checks if an error is a constraint violation.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}
