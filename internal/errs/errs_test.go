package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappersPreserveSentinels(t *testing.T) {
	assert.ErrorIs(t, InsufficientData("only %d mentions", 2), ErrInsufficientData)
	assert.ErrorIs(t, ProviderUnavailable("news", errors.New("timeout")), ErrProviderUnavailable)
	assert.ErrorIs(t, MalformedItem("p42", errors.New("no body")), ErrMalformedItem)
	assert.ErrorIs(t, RateLimited("platform"), ErrRateLimited)
}

func TestWrappersCarryContext(t *testing.T) {
	err := ProviderUnavailable("econ", errors.New("connection refused"))
	assert.Contains(t, err.Error(), "econ")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(RateLimited("platform")))
	assert.True(t, IsRetryable(fmt.Errorf("cycle 3: %w", ErrRateLimited)))
	assert.False(t, IsRetryable(ErrProviderUnavailable))
	assert.False(t, IsRetryable(errors.New("random")))
	assert.False(t, IsRetryable(nil))
}

func TestIsDegradable(t *testing.T) {
	assert.True(t, IsDegradable(ErrProviderUnavailable))
	assert.True(t, IsDegradable(ErrRateLimited))
	assert.True(t, IsDegradable(InsufficientData("n=1")))
	assert.False(t, IsDegradable(ErrMalformedItem))
	assert.False(t, IsDegradable(nil))
}
