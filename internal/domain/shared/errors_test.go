package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	err := NewDomainError(CodeNotFound, "invoice 42 not found")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(fmt.Errorf("lookup: %w", err), ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, "invoice 42 not found", err.Error())
}

func TestNewf(t *testing.T) {
	err := Newf(CodeInvalidState, "entry %s is %s", "e-1", "SENT")

	assert.Equal(t, "entry e-1 is SENT", err.Error())
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.False(t, errors.Is(errors.New("entry e-1 is SENT"), ErrInvalidState))
}
