// Package errors provides error code definitions bridged across the FFI boundary.
package errors

import "fmt"

// ErrorCode represents a unique error code the host application can match on.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrDuplicate  ErrorCode = "DUPLICATE"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Database errors
	ErrDatabase    ErrorCode = "DATABASE_ERROR"
	ErrMigration   ErrorCode = "MIGRATION_FAILED"
	ErrConstraint  ErrorCode = "CONSTRAINT_VIOLATION"
	ErrNotReady    ErrorCode = "DATABASE_NOT_READY"
	ErrHookInstall ErrorCode = "HOOK_INSTALL_FAILED"

	// Entity errors
	ErrContactNotFound ErrorCode = "CONTACT_NOT_FOUND"
	ErrMessageNotFound ErrorCode = "MESSAGE_NOT_FOUND"

	// History ledger errors
	ErrHistoryAppend ErrorCode = "HISTORY_APPEND_FAILED"
	ErrHistoryRead   ErrorCode = "HISTORY_READ_FAILED"
	ErrHistoryMark   ErrorCode = "HISTORY_MARK_FAILED"

	// Transport errors
	ErrNetworkUnavailable ErrorCode = "NETWORK_UNAVAILABLE"
	ErrMaxRetries         ErrorCode = "MAX_RETRY_COUNT_REACHED"
	ErrTransportTimeout   ErrorCode = "TRANSPORT_TIMEOUT"
	ErrTransportFailed    ErrorCode = "TRANSPORT_FAILED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// CodeOf extracts the ErrorCode from an error, or ErrInternal for plain errors.
func CodeOf(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}
