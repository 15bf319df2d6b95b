// Package errors provides structured error types for stanza.
//
// Every failure the dependency manager surfaces to a user carries a
// machine-readable [Code] next to a human-readable message that names the
// offending entity (package, feature, element or constraint). The CLI prints
// [UserMessage] and exits non-zero; callers that need to branch on a failure
// class use [Is].
//
// # Error Codes
//
//   - INVALID_*, MISSING_*: malformed manifest or lock data
//   - UNKNOWN_FEATURE, UPDATE_NOT_ALLOWED, MUTUALLY_EXCLUSIVE_REQUEST: rejected requests
//   - INSTALLATION_ERROR: the external installer exited non-zero
//   - RESOLUTION_INCONSISTENCY: the resolver output could not be post-processed
//   - NOT_FOUND, NETWORK_ERROR, INTERNAL_ERROR: infrastructure failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnknownFeature, "Feature [%s] does not exist", name)
//	if errors.Is(err, errors.ErrCodeUnknownFeature) {
//	    // Handle unknown feature
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInstallation, cause, "Error while installing [%s]", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Manifest and lock data errors
	ErrCodeInvalidConstraint Code = "INVALID_CONSTRAINT"
	ErrCodeInvalidElement    Code = "INVALID_ELEMENT"
	ErrCodeMissingElement    Code = "MISSING_ELEMENT"
	ErrCodeInvalidPackage    Code = "INVALID_PACKAGE"

	// Request errors
	ErrCodeUnknownFeature           Code = "UNKNOWN_FEATURE"
	ErrCodeUpdateNotAllowed         Code = "UPDATE_NOT_ALLOWED"
	ErrCodeMutuallyExclusiveRequest Code = "MUTUALLY_EXCLUSIVE_REQUEST"

	// Execution errors
	ErrCodeInstallation            Code = "INSTALLATION_ERROR"
	ErrCodeResolutionInconsistency Code = "RESOLUTION_INCONSISTENCY"

	// Infrastructure errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeNetwork  Code = "NETWORK_ERROR"
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

// MissingElement reports a required manifest element that is absent.
func MissingElement(element string) *Error {
	return New(ErrCodeMissingElement, "The poetry.toml file is missing the [%s] element", element)
}

// MissingLockElement reports a required lock document element that is
// absent.
func MissingLockElement(element string) *Error {
	return New(ErrCodeMissingElement, "The poetry.lock file is missing the [%s] element", element)
}

// InvalidElement reports a manifest or lock element whose value is unusable.
// The info string is appended in parentheses when non-empty.
func InvalidElement(element, info string) *Error {
	if info == "" {
		return New(ErrCodeInvalidElement, "The element [%s] is invalid", element)
	}
	return New(ErrCodeInvalidElement, "The element [%s] is invalid (%s)", element, info)
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
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

// OutputError carries the captured output of a failed external process.
// It is used as the Cause of an INSTALLATION_ERROR.
type OutputError struct {
	Command  string // Command line that was executed
	ExitCode int    // Process exit code, -1 if the process never ran
	Output   string // Combined stdout and stderr
	Err      error  // Underlying exec error
}

// Error implements the error interface.
func (e *OutputError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

// Unwrap returns the underlying exec error.
func (e *OutputError) Unwrap() error { return e.Err }
