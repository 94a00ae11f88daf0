// Package httputil centralizes JSON response encoding and the translation of
// tagged domain errors into the public error envelope.
//
// The envelope is the hard security boundary of the service: callers only
// ever see a generic, pre-written message plus a stable code. Whatever detail
// the underlying error carries (database text, token parse failures, store
// errors) stays on the server side and must be logged there instead.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	dErrors "lendgate/pkg/domain-errors"
)

// ErrorResponse is the uniform error envelope returned by every endpoint.
type ErrorResponse struct {
	Error      string               `json:"error"`
	Code       string               `json:"code"`
	Violations []dErrors.FieldError `json:"violations,omitempty"`
	RetryAfter int                  `json:"retry_after,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore
	// encoding errors. Headers are already sent.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError translates a tagged domain error into the public envelope.
// Unknown errors fall through to a generic 500; their detail is never
// forwarded to the caller.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: publicMessage(dErrors.CodeInternal),
			Code:  publicCode(dErrors.CodeInternal),
		})
		return
	}

	resp := ErrorResponse{
		Error: publicMessage(domainErr.Code),
		Code:  publicCode(domainErr.Code),
	}
	if domainErr.Code == dErrors.CodeValidation {
		resp.Violations = domainErr.Violations
	}
	if domainErr.Code == dErrors.CodeRateLimited && domainErr.RetryAfter > 0 {
		resp.RetryAfter = domainErr.RetryAfter
		w.Header().Set("Retry-After", strconv.Itoa(domainErr.RetryAfter))
	}
	WriteJSON(w, StatusOf(domainErr.Code), resp)
}

// StatusOf maps a domain error code to its HTTP status.
func StatusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeMFAFailed:
		return http.StatusForbidden
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func publicCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeUnauthorized:
		return "AUTHENTICATION_FAILED"
	case dErrors.CodeForbidden:
		return "PERMISSION_DENIED"
	case dErrors.CodeRateLimited:
		return "RATE_LIMIT_EXCEEDED"
	case dErrors.CodeMFAFailed:
		return "MFA_VERIFICATION_FAILED"
	case dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return "VALIDATION_ERROR"
	case dErrors.CodeNotFound:
		return "NOT_FOUND"
	case dErrors.CodeConflict:
		return "CONFLICT"
	default:
		return "INTERNAL_ERROR"
	}
}

// publicMessage returns the pre-written message for a code. These strings are
// fixed: handlers must not interpolate internal error text into them.
func publicMessage(code dErrors.Code) string {
	switch code {
	case dErrors.CodeUnauthorized:
		return "Authentication required"
	case dErrors.CodeForbidden:
		return "You do not have permission to perform this action"
	case dErrors.CodeRateLimited:
		return "Too many requests. Please try again later."
	case dErrors.CodeMFAFailed:
		return "Multi-factor verification failed"
	case dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return "Invalid input provided. Please check your request and try again."
	case dErrors.CodeNotFound:
		return "The requested resource was not found"
	case dErrors.CodeConflict:
		return "The request conflicts with the current state"
	default:
		return "An unexpected error occurred. Please try again later."
	}
}
