package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// Handlers never inspect error message text; they switch on these tags.
type Code string

const (
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeRateLimited  Code = "rate_limited"
	CodeMFAFailed    Code = "mfa_failed"
	CodeValidation   Code = "validation_failed"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInvalidInput Code = "invalid_input"
	CodeInternal     Code = "internal_error"
)

// FieldError is a single field-level validation violation.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and
// handler layers. Validation errors additionally carry the full list of
// field violations so callers can surface all of them at once.
type Error struct {
	Code       Code
	Message    string
	Violations []FieldError
	// RetryAfter carries the wait hint of a rate-limited request, in
	// seconds. Zero for every other code.
	RetryAfter int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// NewValidation creates a validation error carrying all field violations.
// The violations slice must not be mutated after the call.
func NewValidation(violations []FieldError) error {
	return &Error{
		Code:       CodeValidation,
		Message:    "invalid input provided",
		Violations: violations,
	}
}

// NewRateLimited creates a rate-limit error carrying the retry hint.
func NewRateLimited(retryAfterSeconds int) error {
	return &Error{
		Code:       CodeRateLimited,
		Message:    "rate limit exceeded",
		RetryAfter: retryAfterSeconds,
	}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Violations: existing.Violations, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the domain code of err, or CodeInternal for unknown errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
