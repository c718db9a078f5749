package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("resource not found")

	// ErrForbidden is returned when the caller's role or ownership does not allow the operation.
	ErrForbidden = errors.New("permission denied")

	// ErrInvalidState is returned when an operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	ErrInvalidTransition    = fmt.Errorf("%w: order status transition not allowed", ErrInvalidState)
	ErrNotImpersonating     = fmt.Errorf("%w: not currently impersonating", ErrInvalidState)
	ErrAlreadyImpersonating = fmt.Errorf("%w: already impersonating another user", ErrInvalidState)

	// ErrOriginalUserMissing means the account that started an impersonation no longer exists.
	// It is a data-integrity alarm, still reported to clients as not found.
	ErrOriginalUserMissing = fmt.Errorf("%w: original user of impersonation session", ErrNotFound)
)

// ValidationError describes the first invalid field of a request
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
