package honeybadger

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing notification failures.
type ErrorCode string

// Complete error code constants. Codes share a prefix with their family:
// build_* failures happen before any I/O, rejected_* mean the collector
// received and refused the notice, transport_* and timeout mean the notice
// may never have arrived.
const (
	// Build (no request was made)
	ErrCodeBuildMissingAPIKey ErrorCode = "build_missing_api_key"
	ErrCodeBuildInvalidConfig ErrorCode = "build_invalid_config"
	ErrCodeBuildEncodeFailed  ErrorCode = "build_encode_failed"

	// Rejected (collector handled the request and said no)
	ErrCodeRejectedUnauthorized  ErrorCode = "rejected_unauthorized"
	ErrCodeRejectedUnprocessable ErrorCode = "rejected_unprocessable"
	ErrCodeRejectedRateLimited   ErrorCode = "rejected_rate_limited"
	ErrCodeRejectedRedirect      ErrorCode = "rejected_redirect"
	ErrCodeRejectedClient        ErrorCode = "rejected_client_error"

	// Transport (delivery is in doubt; retrying may succeed)
	ErrCodeTransportConnection       ErrorCode = "transport_connection"
	ErrCodeTransportServer           ErrorCode = "transport_server_error"
	ErrCodeTransportCircuitOpen      ErrorCode = "transport_circuit_open"
	ErrCodeTransportUnexpectedStatus ErrorCode = "transport_unexpected_status"

	// Deadline and cancellation
	ErrCodeTimeout  ErrorCode = "timeout"
	ErrCodeCanceled ErrorCode = "canceled"
)

// Transient reports whether a failure with this code is worth retrying by the
// caller. Rejections are permanent for a given payload; transport failures,
// server errors, and timeouts are not.
func (c ErrorCode) Transient() bool {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "transport_"):
		return true
	case c == ErrCodeTimeout:
		return true
	default:
		return false
	}
}

// codeForStatus maps an HTTP response status from the collector to an
// ErrorCode. 2xx never reaches this function.
func codeForStatus(status int) ErrorCode {
	switch {
	case status >= 300 && status < 400:
		return ErrCodeRejectedRedirect
	case status == 401:
		return ErrCodeRejectedUnauthorized
	case status == 422:
		return ErrCodeRejectedUnprocessable
	case status == 429:
		return ErrCodeRejectedRateLimited
	case status >= 400 && status < 500:
		return ErrCodeRejectedClient
	case status >= 500 && status < 600:
		return ErrCodeTransportServer
	default:
		return ErrCodeTransportUnexpectedStatus
	}
}

// Error is the standard error type returned by this package. Every failure
// from building or delivering a notice is expressed as *Error to enable
// consistent classification and error chain support.
type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int    // HTTP status when a response was received, else 0
	Body       string // response body (bounded) when a response was received
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the same notice may succeed.
func (e *Error) Transient() bool {
	return e.Code.Transient()
}

// newError creates an *Error with the given code, message, and optional
// underlying error. This is the standard constructor for package errors.
func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// asError extracts an *Error from an error chain.
func asError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsBuild reports whether err is a build failure: the notice was never
// serialized and no request was made.
func IsBuild(err error) bool {
	if e, ok := asError(err); ok {
		return strings.HasPrefix(string(e.Code), "build_")
	}
	return false
}

// IsRejected reports whether the collector received the notice and refused
// it. Rejected errors carry the response status and body.
func IsRejected(err error) bool {
	if e, ok := asError(err); ok {
		return strings.HasPrefix(string(e.Code), "rejected_")
	}
	return false
}

// IsTimeout reports whether the attempt exceeded the configured deadline.
func IsTimeout(err error) bool {
	if e, ok := asError(err); ok {
		return e.Code == ErrCodeTimeout
	}
	return false
}

// IsTransient reports whether err is a failure class where retrying the same
// notice may succeed (connection failures, 5xx responses, timeouts).
func IsTransient(err error) bool {
	if e, ok := asError(err); ok {
		return e.Transient()
	}
	return false
}
