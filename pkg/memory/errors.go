package memory

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested memory was not found for the
	// given owner.
	ErrNotFound = errors.New("memory not found")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrQuotaExceeded indicates that the owner's active memory quota is
	// full and the new record was not admitted.
	ErrQuotaExceeded = errors.New("memory quota exceeded")

	// ErrProviderUnavailable indicates that an external provider
	// (embedding or summarization) failed or is not configured.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrStoreOperation indicates that a storage operation failed.
	ErrStoreOperation = errors.New("storage operation failed")
)

// QuotaExceededError reports a refused admission, carrying the configured
// limit so callers can render an actionable message.
//
// It unwraps to ErrQuotaExceeded:
//
//	_, err := svc.Create(ctx, ownerID, content)
//	if errors.Is(err, memory.ErrQuotaExceeded) { ... }
type QuotaExceededError struct {
	// Limit is the configured maximum number of active memories per owner.
	Limit int
}

// Error returns the user-actionable quota message.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("memory quota exceeded: limit of %d active memories reached; delete or archive memories to make room", e.Limit)
}

// Unwrap returns ErrQuotaExceeded for errors.Is matching.
func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

// MemoryError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "coachmem: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("coachmem: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with MemoryError.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewMemoryError("Create", err)
//	}
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}
