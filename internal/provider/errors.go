package provider

import (
	"errors"
	"fmt"
)

// ErrorCode classifies provider errors.
type ErrorCode string

const (
	ErrCodeAuthFailed         ErrorCode = "AUTH_FAILED"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeModelNotFound      ErrorCode = "MODEL_NOT_FOUND"
	ErrCodeNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeUnknown            ErrorCode = "UNKNOWN"
)

// Error is a structured error for provider operations.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider"`
	Retryable bool      `json:"retryable"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
}

// NewError creates a structured provider error.
func NewError(code ErrorCode, message, providerName string, retryable bool) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Provider:  providerName,
		Retryable: retryable,
	}
}

// CodeOf extracts the error code from err, or ErrCodeUnknown for
// untyped errors.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrCodeUnknown
}

// CodeForStatus maps an HTTP status from a backend to an error code.
func CodeForStatus(status int) ErrorCode {
	switch {
	case status == 401 || status == 403:
		return ErrCodeAuthFailed
	case status == 404:
		return ErrCodeModelNotFound
	case status == 429:
		return ErrCodeRateLimited
	case status >= 500:
		return ErrCodeServiceUnavailable
	case status >= 400:
		return ErrCodeInvalidRequest
	default:
		return ErrCodeUnknown
	}
}
