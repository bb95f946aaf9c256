// Package domain defines the core domain types for mirrorsync.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "MS-CONF-4000")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Configuration Errors (CONF)
// ============================================================================

var (
	// ErrTypeMismatch indicates a setting received a value of the wrong type,
	// e.g. a non-string key prefix or a nil serializer.
	ErrTypeMismatch = NewDomainError("MS-CONF-4000", "type mismatch")

	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = NewDomainError("MS-CONF-4001", "invalid configuration")
)

// ============================================================================
// Backend Errors (BACK)
// ============================================================================

var (
	// ErrBackendClosed indicates an operation on a closed backend.
	ErrBackendClosed = NewDomainError("MS-BACK-5000", "backend closed")

	// ErrBackendUnavailable indicates the capability probe failed.
	ErrBackendUnavailable = NewDomainError("MS-BACK-5030", "backend unavailable")

	// ErrBackendWriteFailure indicates a single write or remove was rejected.
	ErrBackendWriteFailure = NewDomainError("MS-BACK-5070", "backend write failure")

	// ErrBackendLocked indicates a single-process store is held by another
	// process.
	ErrBackendLocked = NewDomainError("MS-BACK-4230", "backend locked by another process")

	// ErrBackendPanic indicates a backend call panicked and was recovered.
	ErrBackendPanic = NewDomainError("MS-BACK-5001", "backend panic")
)

// ============================================================================
// Registry Errors (REG)
// ============================================================================

var (
	// ErrProviderNotFound indicates no provider is registered under a name.
	ErrProviderNotFound = NewDomainError("MS-REG-4040", "provider not found")

	// ErrProviderConflict indicates a provider name is already registered.
	ErrProviderConflict = NewDomainError("MS-REG-4090", "provider already registered")
)
