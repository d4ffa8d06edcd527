package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types surfaced in the response envelope.
const (
	TypeValidation            = "ValidationError"
	TypeInvalidCredentials    = "InvalidCredentials"
	TypeMfaVerificationFailed = "MfaVerificationFailed"
	TypeInvalidMfaCode        = "InvalidMfaCode"
	TypeNotAuthenticated      = "NotAuthenticated"
	TypeForbidden             = "Forbidden"
	TypeNotFound              = "NotFound"
	TypeConflict              = "Conflict"
	TypeRateLimited           = "TooManyRequests"
	TypeInternal              = "InternalServerError"
)

// Error is the single error shape crossing the service boundary. Status is
// the HTTP status to respond with; Type and Msg land in the envelope.
type Error struct {
	Status int
	Type   string
	Msg    string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

func New(status int, typ, msg string) *Error {
	return &Error{Status: status, Type: typ, Msg: msg}
}

func Wrap(err error, status int, typ, msg string) *Error {
	return &Error{Status: status, Type: typ, Msg: msg, cause: err}
}

// InvalidCredentials uses one message for unknown email and wrong password so
// responses cannot be used for account enumeration.
func InvalidCredentials() *Error {
	return New(http.StatusBadRequest, TypeInvalidCredentials, "email or password does not match")
}

func MfaVerificationFailed() *Error {
	return New(http.StatusUnauthorized, TypeMfaVerificationFailed, "MFA verification failed")
}

func InvalidMfaCode() *Error {
	return New(http.StatusBadRequest, TypeInvalidMfaCode, "invalid MFA code, please try again")
}

func NotAuthenticated() *Error {
	return New(http.StatusUnauthorized, TypeNotAuthenticated, "not authenticated")
}

func Forbidden() *Error {
	return New(http.StatusForbidden, TypeForbidden, "insufficient permissions")
}

func NotFound(msg string) *Error {
	return New(http.StatusNotFound, TypeNotFound, msg)
}

func Validation(msg string) *Error {
	return New(http.StatusBadRequest, TypeValidation, msg)
}

func Conflict(msg string) *Error {
	return New(http.StatusBadRequest, TypeConflict, msg)
}

func Internal(err error, msg string) *Error {
	return Wrap(err, http.StatusInternalServerError, TypeInternal, msg)
}

// From normalizes any error into an *Error. Unknown errors become opaque
// internal errors so their detail never leaks past the boundary untagged.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err, "internal server error")
}

// Entry is one element of the response envelope.
type Entry struct {
	Ref    string `json:"ref"`
	Type   string `json:"type"`
	Msg    string `json:"msg"`
	Path   string `json:"path"`
	Method string `json:"method"`
}

// Envelope is the uniform error response body.
type Envelope struct {
	Errors []Entry `json:"errors"`
}
