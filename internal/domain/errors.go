package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound          = errors.New("domain: not found")
	ErrConflict          = errors.New("domain: conflict")
	ErrUnauthorized      = errors.New("domain: unauthorized")
	ErrForbidden         = errors.New("domain: forbidden")
	ErrInvalidTransition = errors.New("domain: invalid state transition")
	ErrValidation        = errors.New("domain: validation failed")
	ErrLimitExceeded     = errors.New("domain: plan limit exceeded")
	ErrInsufficientStock = errors.New("domain: insufficient stock")
)

// ValidationError carries a field-level message while still matching ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "domain: validation failed: " + e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// LimitError explains which plan limit was hit while still matching ErrLimitExceeded.
type LimitError struct {
	Message string
}

func (e *LimitError) Error() string {
	return "domain: plan limit exceeded: " + e.Message
}

func (e *LimitError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// OverLimit builds a LimitError.
func OverLimit(message string) error {
	return &LimitError{Message: message}
}
