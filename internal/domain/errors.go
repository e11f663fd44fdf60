package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a listing id is unknown or malformed.
	ErrNotFound = errors.New("listing not found")
	// ErrValidation marks user input that failed validation.
	ErrValidation = errors.New("validation failed")
	// ErrRateLimited marks a submission refused by a rate limiter.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrStorageUnavailable marks a failing record store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrNotificationDelivery marks a failed side-channel email.
	ErrNotificationDelivery = errors.New("notification delivery failed")
)

// ValidationError describes which field failed and why.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFound wraps ErrNotFound with the offending id.
func NotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Unavailable wraps a backend error into ErrStorageUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// Code returns the stable error code used in API responses.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrStorageUnavailable):
		return "STORAGE_UNAVAILABLE"
	case errors.Is(err, ErrNotificationDelivery):
		return "NOTIFICATION_FAILED"
	default:
		return "INTERNAL_ERROR"
	}
}
