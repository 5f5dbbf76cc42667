// Package domain defines core types, ports, and errors for the query gateway.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Stable error codes returned to callers. Codes are part of the API contract
// and must not change between releases.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeUnsupportedOperation = "UNSUPPORTED_OPERATION"
	CodeUnknownColumn        = "UNKNOWN_COLUMN"
	CodeSensitiveColumn      = "SENSITIVE_COLUMN_ACCESS"
	CodeForbiddenWrite       = "FORBIDDEN_WRITE"
	CodeFilterlessMutation   = "FILTERLESS_MUTATION"
	CodeValidation           = "VALIDATION_ERROR"
	CodeQuotaExceeded        = "QUOTA_EXCEEDED"
	CodeRateLimited          = "RATE_LIMITED"
	CodeTimeout              = "TIMEOUT"
	CodeParseError           = "PARSE_ERROR"
	CodeMultiStatement       = "MULTI_STATEMENT"
	CodeQualifiedIdentifier  = "QUALIFIED_IDENTIFIER"
	CodeInternal             = "INTERNAL_ERROR"
)

// NotFoundError indicates a table (or other resource) does not exist in the
// caller's tenant.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates a malformed or unsafe query contract. Code is one
// of the validation-family codes above.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AccessDeniedError indicates a permission denial (sensitive column read or
// forbidden write).
type AccessDeniedError struct {
	Code    string
	Message string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// LimitError indicates a quota or rate-limit denial. RetryAfter is zero when
// the caller should not retry within the current window (daily quota).
type LimitError struct {
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string { return e.Message }

// TimeoutError indicates the statement was cancelled server-side after
// exceeding the enforced execution timeout.
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string { return e.Message }

// InternalError wraps an unexpected failure. The wrapped cause is logged but
// never serialized to callers.
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string { return e.Message }
func (e *InternalError) Unwrap() error { return e.Cause }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with the given code.
func ErrValidation(code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with the given code.
func ErrAccessDenied(code, format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrQuotaExceeded creates a LimitError for an exhausted daily quota.
func ErrQuotaExceeded(format string, args ...interface{}) *LimitError {
	return &LimitError{Code: CodeQuotaExceeded, Message: fmt.Sprintf(format, args...)}
}

// ErrRateLimited creates a LimitError carrying the window retry hint.
func ErrRateLimited(retryAfter time.Duration) *LimitError {
	return &LimitError{
		Code:       CodeRateLimited,
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

// ErrTimeout creates a TimeoutError.
func ErrTimeout(format string, args ...interface{}) *TimeoutError {
	return &TimeoutError{Message: fmt.Sprintf(format, args...)}
}

// ErrInternal wraps an unexpected failure with a caller-safe message.
func ErrInternal(cause error, format string, args ...interface{}) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ErrorCode returns the stable code for any gateway error, or CodeInternal
// for unrecognized errors.
func ErrorCode(err error) string {
	var notFound *NotFoundError
	var validation *ValidationError
	var denied *AccessDeniedError
	var limit *LimitError
	var timeout *TimeoutError

	switch {
	case errors.As(err, &notFound):
		return CodeNotFound
	case errors.As(err, &validation):
		return validation.Code
	case errors.As(err, &denied):
		return denied.Code
	case errors.As(err, &limit):
		return limit.Code
	case errors.As(err, &timeout):
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// Retryable reports whether the caller may retry the request. Validation and
// permission failures are terminal; limits and timeouts are not.
func Retryable(err error) bool {
	var limit *LimitError
	var timeout *TimeoutError
	return errors.As(err, &limit) || errors.As(err, &timeout)
}

// RetryAfter returns the retry hint attached to a rate-limit denial, or zero.
func RetryAfter(err error) time.Duration {
	var limit *LimitError
	if errors.As(err, &limit) {
		return limit.RetryAfter
	}
	return 0
}
