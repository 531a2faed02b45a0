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
		{"ErrNoOwner", ErrNoOwner},
		{"ErrLoadFailed", ErrLoadFailed},
		{"ErrCreateFailed", ErrCreateFailed},
		{"ErrUpdateFailed", ErrUpdateFailed},
		{"ErrDeleteFailed", ErrDeleteFailed},
		{"ErrNavigationPending", ErrNavigationPending},
		{"ErrNoPendingNavigation", ErrNoPendingNavigation},
		{"ErrNoOpenPage", ErrNoOpenPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrors_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("%w: page p1: %w", ErrUpdateFailed, errors.New("connection reset"))

	assert.True(t, errors.Is(wrapped, ErrUpdateFailed))
	assert.False(t, errors.Is(wrapped, ErrCreateFailed))
	assert.Contains(t, wrapped.Error(), "connection reset")
}
