// Package apperr defines the canonical error every backend call resolves to when
// it fails: a closed vocabulary of client-side codes, the APIError value object
// and helpers for inspecting errors returned by the transport.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Client-side error codes. Backend-supplied codes are passed through verbatim.
const (
	CodeNetworkError = "NETWORK_ERROR"
	CodeTimeoutError = "TIMEOUT_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeUnknownError = "UNKNOWN_ERROR"
)

// APIError is the canonical error shape callers program against.
// It is built once per failed exchange and never mutated afterwards.
type APIError struct {
	Message          string `json:"message"`
	Status           int    `json:"status"`
	Code             string `json:"code"`
	Details          any    `json:"details,omitempty"`
	Timestamp        string `json:"timestamp"`
	Path             string `json:"path"`
	ValidationErrors any    `json:"validationErrors,omitempty"`

	cause error
}

// Option configures an APIError during construction.
type Option func(*APIError)

// WithDetails attaches structured details.
func WithDetails(details any) Option { return func(e *APIError) { e.Details = details } }

// WithValidationErrors attaches per-field validation problems.
func WithValidationErrors(v any) Option { return func(e *APIError) { e.ValidationErrors = v } }

// WithTimestamp sets the ISO-8601 timestamp.
func WithTimestamp(ts string) Option { return func(e *APIError) { e.Timestamp = ts } }

// WithPath sets the request path the error belongs to.
func WithPath(path string) Option { return func(e *APIError) { e.Path = path } }

// WithCause records the underlying error for errors.Is/As.
func WithCause(err error) Option { return func(e *APIError) { e.cause = err } }

// New constructs an APIError. An empty code becomes CodeUnknownError.
func New(status int, code, message string, opts ...Option) *APIError {
	if code == "" {
		code = CodeUnknownError
	}
	e := &APIError{
		Message: message,
		Status:  status,
		Code:    code,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Status > 0 {
		return http.StatusText(e.Status)
	}
	return e.Code
}

// Unwrap returns the underlying cause, allowing errors.Unwrap/Is/As to work.
func (e *APIError) Unwrap() error { return e.cause }

// GoString keeps %#v output readable in logs and test failures.
func (e *APIError) GoString() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("apperr.APIError{Status:%d, Code:%q, Message:%q, Path:%q}", e.Status, e.Code, e.Message, e.Path)
}

// As extracts an *APIError from err's chain.
func As(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsCode reports whether err carries an APIError with the given code.
func IsCode(err error, code string) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	if ae, ok := As(err); ok {
		return ae.Status
	}
	return 0
}
