// Package domain defines the core domain models for SockMesh.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured
// error code.
type DomainError struct {
	Code    string // Error code (e.g., "SM-SESS-4040")
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

// Session errors (SESS).
var (
	// ErrSessionNotFound indicates no row exists for the presented
	// token. Not a blocking failure: the engine repairs it by issuing
	// a replacement session, and the message is informational only.
	ErrSessionNotFound = NewDomainError("SM-SESS-4040", "Session Not Found")

	// ErrSessionExpired indicates the row exists but is past its TTL.
	// Repaired the same way as a missing row.
	ErrSessionExpired = NewDomainError("SM-SESS-4041", "Session Expired")

	// ErrSessionEncoding indicates the value map could not be
	// serialized into the data blob.
	ErrSessionEncoding = NewDomainError("SM-SESS-5000", "session encoding failed")

	// ErrSessionDecoding indicates a persisted data blob could not be
	// rehydrated into the value map.
	ErrSessionDecoding = NewDomainError("SM-SESS-5001", "session decoding failed")

	// ErrTokenGeneration indicates the CSPRNG failed.
	ErrTokenGeneration = NewDomainError("SM-TOKN-5000", "token generation failed")
)

// Engine errors (ENGN).
var (
	// ErrMissingStore indicates the engine was constructed without the
	// required storage handle. Fatal at setup, not recoverable.
	ErrMissingStore = NewDomainError("SM-ENGN-5000", "session store is required")

	// ErrEmptyToken indicates a save was attempted with no token
	// assigned. The save is skipped so an un-keyed row is never written.
	ErrEmptyToken = NewDomainError("SM-ENGN-4000", "no session token assigned")

	// ErrLookupFailed indicates storage was unreachable or errored
	// during a load. Reported through the load callback, never raised.
	ErrLookupFailed = NewDomainError("SM-ENGN-5001", "session lookup failed")

	// ErrSaveFailed indicates storage was unreachable or errored
	// during a save. Logged only; set/clear callers are never notified.
	ErrSaveFailed = NewDomainError("SM-ENGN-5002", "session save failed")
)
