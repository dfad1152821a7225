package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced in response envelopes.
const (
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeMalformedRequest      = "MALFORMED_REQUEST"
	CodeInputValidationError  = "INPUT_VALIDATION_ERROR"
	CodeOutputValidationError = "OUTPUT_VALIDATION_ERROR"
	CodeInternalError         = "INTERNAL_ERROR"
	CodeNotImplemented        = "NOT_IMPLEMENTED"
	CodeNotFound              = "NOT_FOUND"
	CodeAgentNotFound         = "AGENT_NOT_FOUND"
	CodeExampleNotFound       = "EXAMPLE_NOT_FOUND"
	CodeAgentSpecInvalid      = "AGENT_SPEC_INVALID"
	CodeAgentVersionExists    = "AGENT_VERSION_EXISTS"
	CodeRegistryError         = "REGISTRY_ERROR"
	CodeRateLimited           = "RATE_LIMITED"
)

// GateError is a structured error with a machine-readable code and
// optional details that flow into the error envelope.
type GateError struct {
	Code    string      // machine-readable code (e.g. INPUT_VALIDATION_ERROR)
	Message string      // human-readable description
	Details interface{} // structured detail (validation errors, parser message, ...)
	Err     error       // wrapped underlying error
}

// Error implements the error interface.
func (e *GateError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap supports errors.Is / errors.As.
func (e *GateError) Unwrap() error {
	return e.Err
}

// New creates a GateError with the given code and message.
func New(code, message string) *GateError {
	return &GateError{Code: code, Message: message}
}

// Wrap creates a GateError wrapping an existing error.
func Wrap(code, message string, err error) *GateError {
	return &GateError{Code: code, Message: message, Err: err}
}

// WithDetails returns the error with structured details attached.
func (e *GateError) WithDetails(details interface{}) *GateError {
	e.Details = details
	return e
}

// Is checks whether target matches this error's code.
func (e *GateError) Is(target error) bool {
	var ge *GateError
	if errors.As(target, &ge) {
		return e.Code == ge.Code
	}
	return false
}

// AsCode extracts the GateError code from an error, or "" if not a GateError.
func AsCode(err error) string {
	var ge *GateError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// AsGateError converts any error to a GateError, wrapping unknown errors
// as INTERNAL_ERROR so every fault path has a code.
func AsGateError(err error) *GateError {
	var ge *GateError
	if errors.As(err, &ge) {
		return ge
	}
	return Wrap(CodeInternalError, "internal error", err)
}

// HTTPStatus maps an error code to its HTTP status.
func HTTPStatus(code string) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeMalformedRequest, CodeAgentSpecInvalid:
		return http.StatusBadRequest
	case CodeInputValidationError, CodeOutputValidationError:
		return http.StatusUnprocessableEntity
	case CodeNotImplemented:
		return http.StatusNotImplemented
	case CodeNotFound, CodeAgentNotFound, CodeExampleNotFound:
		return http.StatusNotFound
	case CodeAgentVersionExists:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
