// Package validate contains the pure field validators used by the request
// gate. Every validator returns a Result instead of an error so callers can
// collect all violations across a request before rejecting it.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	dErrors "lendgate/pkg/domain-errors"
)

// Result is the outcome of validating a single field. When Valid is false
// Sanitized is always empty so a rejected value can never be used downstream.
type Result struct {
	Valid     bool
	Sanitized string
	Err       string
}

func ok(sanitized string) Result {
	return Result{Valid: true, Sanitized: sanitized}
}

func fail(reason string) Result {
	return Result{Valid: false, Err: reason}
}

const (
	MaxEmailLength = 254
	MaxPhoneLength = 20
	MaxNameLength  = 100

	MinPasswordLength = 12
	MaxPasswordLength = 128
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	namePattern  = regexp.MustCompile(`^[a-zA-Z\s\-']+$`)
	uuidPattern  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	phoneStrip   = regexp.MustCompile(`[^\d+\-\s()]`)
	digitsOnly   = regexp.MustCompile(`\d`)
)

// dangerousFragments are rejected on sight in free-text fields,
// case-insensitively. Defense in depth against stored XSS; output encoding
// remains the frontend's responsibility.
var dangerousFragments = []string{
	"<script",
	"javascript:",
	"<iframe",
}

var eventHandlerPattern = regexp.MustCompile(`(?i)\bon\w+\s*=`)

// Email validates and normalizes an email address: trim, lowercase, format
// pattern, max 254 characters.
func Email(value string) Result {
	sanitized := strings.ToLower(strings.TrimSpace(value))
	if sanitized == "" {
		return fail("email is required")
	}
	if len(sanitized) > MaxEmailLength {
		return fail(fmt.Sprintf("email exceeds max length of %d", MaxEmailLength))
	}
	if !emailPattern.MatchString(sanitized) {
		return fail("invalid email format")
	}
	return ok(sanitized)
}

// Phone validates an optional phone number. All characters except digits,
// '+', '-', spaces, and parentheses are stripped before checking that the
// result carries 10-15 digits.
func Phone(value string) Result {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ok("")
	}
	sanitized := phoneStrip.ReplaceAllString(trimmed, "")
	if len(sanitized) > MaxPhoneLength {
		return fail(fmt.Sprintf("phone exceeds max length of %d", MaxPhoneLength))
	}
	digits := len(digitsOnly.FindAllString(sanitized, -1))
	if digits < 10 || digits > 15 {
		return fail("phone must contain 10 to 15 digits")
	}
	return ok(sanitized)
}

// Name validates an optional person name against an allow-list of letters,
// spaces, hyphens, and apostrophes.
//
// Known limitation carried over from the product requirements: the allow-list
// is ASCII-only and rejects legitimate non-Latin names. Do not widen it
// without product sign-off; it is tracked as an open product question.
func Name(value, field string) Result {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ok("")
	}
	if len(trimmed) > MaxNameLength {
		return fail(fmt.Sprintf("%s exceeds max length of %d", field, MaxNameLength))
	}
	if !namePattern.MatchString(trimmed) {
		return fail(fmt.Sprintf("%s contains invalid characters", field))
	}
	return ok(trimmed)
}

// FreeText validates optional free text, rejecting known script-injection
// fragments outright rather than attempting to strip them.
func FreeText(value, field string, maxLength int) Result {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ok("")
	}
	if len(trimmed) > maxLength {
		return fail(fmt.Sprintf("%s exceeds max length of %d", field, maxLength))
	}
	lower := strings.ToLower(trimmed)
	for _, fragment := range dangerousFragments {
		if strings.Contains(lower, fragment) {
			return fail(fmt.Sprintf("%s contains disallowed content", field))
		}
	}
	if eventHandlerPattern.MatchString(trimmed) {
		return fail(fmt.Sprintf("%s contains disallowed content", field))
	}
	return ok(trimmed)
}

const passwordSymbols = `!@#$%^&*()_+-=[]{};':"|,.<>/?~` + "`"

// Password validates a required password against the complexity policy:
// 12-128 characters with at least one uppercase letter, one lowercase
// letter, one digit, and one symbol. The error names the first missing
// character class so the frontend can guide the user.
func Password(value string) Result {
	if value == "" {
		return fail("password is required")
	}
	if len(value) < MinPasswordLength {
		return fail(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(value) > MaxPasswordLength {
		return fail(fmt.Sprintf("password exceeds max length of %d", MaxPasswordLength))
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range value {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}

	switch {
	case !hasUpper:
		return fail("password must contain an uppercase letter")
	case !hasLower:
		return fail("password must contain a lowercase letter")
	case !hasDigit:
		return fail("password must contain a digit")
	case !hasSymbol:
		return fail("password must contain a symbol")
	}
	// The sanitized value is the password itself; it is the caller's job to
	// hash it immediately and keep it out of logs.
	return ok(value)
}

// UUID validates a required canonical UUID, normalized to lowercase.
func UUID(value, field string) Result {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fail(fmt.Sprintf("%s is required", field))
	}
	if !uuidPattern.MatchString(trimmed) {
		return fail(fmt.Sprintf("%s must be a valid UUID", field))
	}
	return ok(strings.ToLower(trimmed))
}

// Errors aggregates field violations so a request is rejected with every
// problem at once instead of only the first.
type Errors struct {
	violations []dErrors.FieldError
}

// Check records the result of validating a field and returns the sanitized
// value for convenient assignment.
func (e *Errors) Check(field string, r Result) string {
	if !r.Valid {
		e.violations = append(e.violations, dErrors.FieldError{Field: field, Reason: r.Err})
	}
	return r.Sanitized
}

// Add records an ad-hoc violation outside the standard validators.
func (e *Errors) Add(field, reason string) {
	e.violations = append(e.violations, dErrors.FieldError{Field: field, Reason: reason})
}

// Err returns a single validation_failed domain error carrying all recorded
// violations, or nil when every field passed.
func (e *Errors) Err() error {
	if len(e.violations) == 0 {
		return nil
	}
	return dErrors.NewValidation(e.violations)
}
