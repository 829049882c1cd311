package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrSyncInProgress", ErrSyncInProgress},
		{"ErrFatalFetch", ErrFatalFetch},
		{"ErrTransientFetch", ErrTransientFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// The backfill error list relies on this exact message.
func TestErrNotFound_Message(t *testing.T) {
	assert.Equal(t, "not found", ErrNotFound.Error())
	assert.True(t, errors.Is(ErrNotFound, ErrNotFound))
	assert.False(t, errors.Is(ErrNotFound, ErrInvalidInput))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrTransientFetch))
	assert.True(t, IsRetryable(fmt.Errorf("list page: %w", ErrTransientFetch)))
	assert.False(t, IsRetryable(ErrFatalFetch))
	assert.False(t, IsRetryable(ErrNotFound))
	assert.False(t, IsRetryable(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrFatalFetch))
	assert.True(t, IsFatal(fmt.Errorf("list page: %w", ErrFatalFetch)))
	assert.False(t, IsFatal(ErrTransientFetch))
	assert.False(t, IsFatal(nil))
}
