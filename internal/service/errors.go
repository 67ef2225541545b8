package service

import "errors"

// ErrRateNotFound indicates the currency pair cannot be resolved although all dependencies are healthy.
var ErrRateNotFound = errors.New("conversion rate not found")

// ErrResolutionUnavailable indicates the upstream rate source is temporarily unusable.
var ErrResolutionUnavailable = errors.New("rate resolution unavailable")

// ErrStoreFailure indicates the rate store could not be read.
var ErrStoreFailure = errors.New("rate store failure")

// ErrValidation is the parent of every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError carries a client-facing message for a rejected conversion request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Unwrap allows errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error { return ErrValidation }
