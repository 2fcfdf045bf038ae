// Package errs defines the error taxonomy shared across the pipeline.
// Failures are classified so each layer can decide between degrading a
// component, skipping a unit of work, or retrying within the cycle.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData marks results below minimum mention/sample
	// thresholds. Callers return a neutral result instead of surfacing it.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrProviderUnavailable marks an enrichment channel that timed out or
	// errored. The affected component degrades to its neutral default.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrMalformedItem marks an unparsable raw item. The item is skipped and
	// counted; the batch continues.
	ErrMalformedItem = errors.New("malformed item")

	// ErrRateLimited marks provider-side throttling. Retried with backoff in
	// the same cycle, or deferred to the next one.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// InsufficientData wraps ErrInsufficientData with context.
func InsufficientData(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInsufficientData}, args...)...)
}

// ProviderUnavailable wraps a provider failure with the provider name.
func ProviderUnavailable(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, provider, err)
}

// MalformedItem wraps ErrMalformedItem with the offending item id.
func MalformedItem(id string, err error) error {
	return fmt.Errorf("%w: item %s: %v", ErrMalformedItem, id, err)
}

// RateLimited wraps ErrRateLimited with the provider name.
func RateLimited(provider string) error {
	return fmt.Errorf("%w: %s", ErrRateLimited, provider)
}

// IsRetryable reports whether the error is worth retrying within the cycle.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsDegradable reports whether the error should degrade a single component
// rather than fail the whole calculation.
func IsDegradable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrInsufficientData)
}
