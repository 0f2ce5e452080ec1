package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnknownModelType is returned when directive text names a model type
// outside the recognized set.
var ErrUnknownModelType = errors.New("unknown model type")

// ErrorType represents the type of model call error
type ErrorType string

const (
	ErrorTypeUnknown        ErrorType = "unknown"
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeAuthentication ErrorType = "authentication_error"
	ErrorTypeRateLimited    ErrorType = "rate_limited"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeProviderError  ErrorType = "provider_error"
)

// Error represents a failed call to a model provider
type Error struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Provider   Provider  `json:"provider"`
	Model      string    `json:"model,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	RetryAfter int       `json:"retry_after,omitempty"` // Seconds to wait before retry
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if the error is worth retrying
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new model call error
func NewError(provider Provider, errorType ErrorType, message string) *Error {
	return &Error{
		Type:      errorType,
		Message:   message,
		Provider:  provider,
		Retryable: isRetryableError(errorType),
	}
}

// NewErrorWithCause creates a new model call error with an underlying cause
func NewErrorWithCause(provider Provider, errorType ErrorType, message string, cause error) *Error {
	err := NewError(provider, errorType, message)
	err.Cause = cause
	return err
}

// isRetryableError determines if an error type is retryable
func isRetryableError(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeRateLimited, ErrorTypeTimeout, ErrorTypeProviderError:
		return true
	default:
		return false
	}
}

// ParseHTTPError maps an HTTP status from a provider into an Error
func ParseHTTPError(provider Provider, statusCode int, body string) *Error {
	var errorType ErrorType
	var message string

	switch statusCode {
	case http.StatusBadRequest:
		errorType = ErrorTypeInvalidRequest
		message = "invalid request parameters"
	case http.StatusUnauthorized, http.StatusForbidden:
		errorType = ErrorTypeAuthentication
		message = "authentication failed"
	case http.StatusTooManyRequests:
		errorType = ErrorTypeRateLimited
		message = "rate limit exceeded"
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		errorType = ErrorTypeTimeout
		message = "request timed out"
	default:
		if statusCode >= 500 {
			errorType = ErrorTypeProviderError
			message = "provider server error"
		} else {
			errorType = ErrorTypeUnknown
			message = "unexpected response"
		}
	}

	if body != "" {
		message = fmt.Sprintf("%s: %s", message, body)
	}

	err := NewError(provider, errorType, message)
	err.HTTPStatus = statusCode
	return err
}

// AsError extracts an *Error from an error chain
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsTimeout reports whether err is a per-call timeout
func IsTimeout(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Type == ErrorTypeTimeout
	}
	return false
}

// IsRateLimited reports whether err is a provider throttle response
func IsRateLimited(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Type == ErrorTypeRateLimited
	}
	return false
}

// IsRetryable reports whether err is transient enough to retry
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.IsRetryable()
	}
	return false
}
