package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Resolution errors
	ErrNotFound = &Error{Code: "NOT_FOUND", Message: "no provider could resolve the symbol"}
	ErrNoData   = &Error{Code: "NO_DATA", Message: "no data available"}

	// Provider errors. These stay behind the orchestrator boundary and
	// exist for internal diagnostics only.
	ErrUpstreamUnavailable = &Error{Code: "UPSTREAM_UNAVAILABLE", Message: "upstream provider unavailable"}
	ErrUpstreamMalformed   = &Error{Code: "UPSTREAM_MALFORMED", Message: "upstream response malformed"}

	// Currency errors
	ErrConversionDegraded  = &Error{Code: "CONVERSION_DEGRADED", Message: "exchange-rate chain exhausted, static fallback used"}
	ErrUnsupportedCurrency = &Error{Code: "UNSUPPORTED_CURRENCY", Message: "only USD and BRL are supported"}

	// Indicator errors
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient data for analysis"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
