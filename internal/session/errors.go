package session

import "errors"

// Lifecycle error values surfaced to callers.
var (
	ErrValidation        = errors.New("invalid session input")
	ErrInvalidTimeRange  = errors.New("valid_from must be before valid_to")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrForbidden         = errors.New("caller is not the session creator")
)
