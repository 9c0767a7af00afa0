package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals malformed or missing search parameters.
	ErrValidation = errors.New("validation failed")
	// ErrQuotaExceeded signals an identity that has used up its search allowance.
	ErrQuotaExceeded = errors.New("search quota exceeded")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnauthorized signals an unknown api key.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRetrievalFailed signals a content store failure while retrieving candidates.
	ErrRetrievalFailed = errors.New("retrieval failed")
)

// ValidationError names the offending parameter. It unwraps to ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
