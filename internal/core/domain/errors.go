// Package domain defines the core domain models for abook.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
//
// Codes have the form AB-<AREA>-<NNNN>; the last four digits carry the
// HTTP status class followed by a sequence number.
type DomainError struct {
	Code    string // Error code (e.g., "AB-BOOK-4040")
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
			return true // Only check if it's a DomainError
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
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrAuthenticationFailed covers unknown users, inactive users and wrong
	// passwords. Callers cannot tell them apart.
	ErrAuthenticationFailed = NewDomainError("AB-AUTH-4010", "invalid username or password")

	// ErrUnauthenticated indicates a missing, malformed or unknown session token.
	ErrUnauthenticated = NewDomainError("AB-AUTH-4011", "authentication required")

	// ErrNotLoggedIn indicates the session was already closed.
	ErrNotLoggedIn = NewDomainError("AB-AUTH-4012", "session not logged in")

	// ErrForbidden indicates a valid session without the required privilege.
	ErrForbidden = NewDomainError("AB-AUTH-4030", "admin privilege required")

	// ErrIPNotAllowed indicates the client address is not in the admin allowlist.
	ErrIPNotAllowed = NewDomainError("AB-AUTH-4031", "ip not in allowlist")
)

// ============================================================================
// Token Errors (TOKN)
// ============================================================================

var (
	// ErrMalformedToken indicates the token text is not a valid encoded token.
	ErrMalformedToken = NewDomainError("AB-TOKN-4000", "malformed token")
)

// ============================================================================
// Lookup Errors
// ============================================================================

var (
	// ErrUserNotFound indicates the store has no such user or password record.
	ErrUserNotFound = NewDomainError("AB-USER-4040", "user not found")

	// ErrAddressBookNotFound indicates neither the cache nor the store has an address book.
	ErrAddressBookNotFound = NewDomainError("AB-BOOK-4040", "address book not found")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("AB-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("AB-SYS-4290", "too many requests")

	// ErrInternal indicates an internal server error.
	ErrInternal = NewDomainError("AB-SYS-5000", "internal server error")

	// ErrPersistence indicates the store was unavailable or a batch write
	// did not affect the expected number of rows.
	ErrPersistence = NewDomainError("AB-SYS-5001", "persistence failure")

	// ErrStoreUnavailable indicates the store failed a readiness probe.
	ErrStoreUnavailable = NewDomainError("AB-SYS-5030", "store unavailable")
)
