package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig   = "CONFIG"
	ErrSSH      = "SSH"     // transport or auth failure reaching a cluster
	ErrCommand  = "COMMAND" // scheduler command ran but exited non-zero
	ErrParse    = "PARSE"
	ErrTimeout  = "TIMEOUT"
	ErrNotFound = "NOT_FOUND"
	ErrServer   = "SERVER" // a remote slurmdash API could not answer
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// The rendered form is:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrSSH code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrSSH,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// NewNotFound creates an error for a cluster name that is not configured.
func NewNotFound(cluster string) *Error {
	return &Error{
		Code:       ErrNotFound,
		Message:    fmt.Sprintf("Cluster '%s' is not configured", cluster),
		Suggestion: "Add it under 'clusters' in slurmdash.yaml, or check the spelling.",
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Short returns a single-line form of the error for logs and API payloads.
func (e *Error) Short() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + Summary(e.Cause)
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var sdErr *Error
	if errors.As(err, &sdErr) {
		return sdErr.Code == code
	}
	return false
}

// Code returns the code of the outermost structured Error in err's chain,
// or an empty string if there is none.
func Code(err error) string {
	var sdErr *Error
	if errors.As(err, &sdErr) {
		return sdErr.Code
	}
	return ""
}

// Summary collapses an error into one line. A structured error uses its
// short form; anything else, including wrappers around structured errors,
// has its own text folded onto one line.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	if sdErr, ok := err.(*Error); ok {
		return sdErr.Short()
	}
	return strings.Join(strings.Fields(err.Error()), " ")
}
