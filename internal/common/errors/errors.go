package errors

import (
	"fmt"
	"net/http"
)

// Error codes
const (
	// 4xx Client Errors
	CodeInvalidInput    = "INVALID_INPUT"
	CodeInvalidEnvelope = "INVALID_ENVELOPE"
	CodeNotFound        = "NOT_FOUND"
	CodeReplayRejected  = "REPLAY_REJECTED"

	// 5xx Server Errors
	CodeInternal   = "INTERNAL_ERROR"
	CodeChainError = "CHAIN_RPC_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// Error constructors

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func InvalidEnvelope(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidEnvelope,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

// ReplayRejected maps a replay-guard rejection onto the HTTP surface. The
// reason code travels in the details so callers can branch on it.
func ReplayRejected(reason, message string) *AppError {
	status := http.StatusConflict
	switch reason {
	case "INVALID_FORMAT", "INVALID_USER", "INVALID_TIMESTAMP":
		status = http.StatusBadRequest
	}
	return &AppError{
		Code:       CodeReplayRejected,
		Message:    message,
		StatusCode: status,
		Details:    map[string]any{"reason": reason},
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func ChainError(message string) *AppError {
	return &AppError{
		Code:       CodeChainError,
		Message:    message,
		StatusCode: http.StatusBadGateway,
	}
}
