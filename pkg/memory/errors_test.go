package memory_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/innermaps/coachmem-go/pkg/memory"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "ErrNotFound",
			err:      memory.ErrNotFound,
			expected: "memory not found",
		},
		{
			name:     "ErrInvalidConfig",
			err:      memory.ErrInvalidConfig,
			expected: "invalid configuration",
		},
		{
			name:     "ErrInvalidInput",
			err:      memory.ErrInvalidInput,
			expected: "invalid input",
		},
		{
			name:     "ErrQuotaExceeded",
			err:      memory.ErrQuotaExceeded,
			expected: "memory quota exceeded",
		},
		{
			name:     "ErrProviderUnavailable",
			err:      memory.ErrProviderUnavailable,
			expected: "provider unavailable",
		},
		{
			name:     "ErrStoreOperation",
			err:      memory.ErrStoreOperation,
			expected: "storage operation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestMemoryError(t *testing.T) {
	originalErr := errors.New("original error")
	memErr := memory.NewMemoryError("test_operation", originalErr)

	assert.Error(t, memErr)
	assert.Contains(t, memErr.Error(), "test_operation")
	assert.Contains(t, memErr.Error(), "original error")

	var target *memory.MemoryError
	if errors.As(memErr, &target) {
		assert.Equal(t, "test_operation", target.Op)
		assert.Equal(t, originalErr, target.Err)
	}
}

func TestMemoryErrorUnwrap(t *testing.T) {
	originalErr := errors.New("original error")
	memErr := memory.NewMemoryError("test_operation", originalErr)

	unwrapped := errors.Unwrap(memErr)
	assert.Equal(t, originalErr, unwrapped)
}

func TestNewMemoryErrorNil(t *testing.T) {
	assert.Nil(t, memory.NewMemoryError("test_operation", nil))
}

func TestQuotaExceededError(t *testing.T) {
	err := &memory.QuotaExceededError{Limit: 150}

	// The message carries the limit and tells the user what to do.
	assert.Contains(t, err.Error(), "150")
	assert.Contains(t, err.Error(), "archive")

	assert.ErrorIs(t, err, memory.ErrQuotaExceeded)

	wrapped := memory.NewMemoryError("Create", err)
	assert.ErrorIs(t, wrapped, memory.ErrQuotaExceeded)

	var quotaErr *memory.QuotaExceededError
	assert.True(t, errors.As(wrapped, &quotaErr))
	assert.Equal(t, 150, quotaErr.Limit)
}
