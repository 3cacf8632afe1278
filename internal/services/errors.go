package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies store errors so callers can decide between
// degrade and abort in one place per component.
type ErrorKind int

const (
	// ErrorKindValidation - malformed identifier, invalid enum value, empty
	// content. Surfaced synchronously; never retried.
	ErrorKindValidation ErrorKind = iota

	// ErrorKindNotFound - session/conversation/message/client absent or
	// inactive. Callers may create-on-demand.
	ErrorKindNotFound

	// ErrorKindPersistence - underlying store unavailable or write rejected.
	// Read paths may degrade to not-found; primary write paths surface it.
	ErrorKindPersistence
)

// String returns a human-readable kind name
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindValidation:
		return "validation"
	case ErrorKindNotFound:
		return "not_found"
	case ErrorKindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// StoreError wraps errors from the session/message stores with a
// classification
type StoreError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a validation error
func NewValidationError(format string, args ...interface{}) *StoreError {
	return &StoreError{Kind: ErrorKindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError creates a not-found error for a resource
func NewNotFoundError(resource, id string) *StoreError {
	return &StoreError{Kind: ErrorKindNotFound, Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

// NewPersistenceError wraps an underlying store failure
func NewPersistenceError(op string, cause error) *StoreError {
	return &StoreError{Kind: ErrorKindPersistence, Message: fmt.Sprintf("failed to %s", op), Cause: cause}
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	return isKind(err, ErrorKindValidation)
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return isKind(err, ErrorKindNotFound)
}

// IsPersistence reports whether err is a persistence error
func IsPersistence(err error) bool {
	return isKind(err, ErrorKindPersistence)
}

func isKind(err error, kind ErrorKind) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == kind
}
