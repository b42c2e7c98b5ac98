// Package errors provides structured error types for learnmap.
//
// Every failure the core reports carries a machine-readable [Code] so that
// embedding layers (CLI, HTTP API, terminal explorer) can decide how to react
// without string matching:
//
//   - VALIDATION, CONFLICT, NOT_FOUND, INVALID_STATE: invariant violations.
//     These are programmer-facing and indicate a bug in the caller.
//   - GENERATION_FAILED: the content generator failed. Recoverable; the
//     placeholder Article keeps a retry-able error flag.
//   - LAYOUT_FAILED: the layout engine failed. Recoverable; prior positions
//     are kept.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConflict, "article %s already exists", id)
//	if errors.Is(err, errors.ErrCodeConflict) {
//	    // Handle duplicate insert
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeGeneration, origErr, "generate follow-up for %s", qid)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Graph invariant violations
	ErrCodeValidation   Code = "VALIDATION"
	ErrCodeConflict     Code = "CONFLICT"
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeInvalidState Code = "INVALID_STATE"

	// Recoverable collaborator failures
	ErrCodeGeneration Code = "GENERATION_FAILED"
	ErrCodeLayout     Code = "LAYOUT_FAILED"

	// Input and transport errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeNetwork      Code = "NETWORK_ERROR"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// Only the outermost *Error in the chain is considered, so a layout failure
// caused by a network error reports LAYOUT_FAILED, not NETWORK_ERROR.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsInvariantViolation reports whether err is one of the programmer-facing
// graph invariant errors (validation, conflict, not found, invalid state).
func IsInvariantViolation(err error) bool {
	switch GetCode(err) {
	case ErrCodeValidation, ErrCodeConflict, ErrCodeNotFound, ErrCodeInvalidState:
		return true
	}
	return false
}
