package attendance

import (
	"errors"
	"fmt"
)

// Ledger error values surfaced to callers.
var (
	ErrSessionNotActive = errors.New("session is not accepting attendance")
	ErrAlreadyMarked    = errors.New("student already marked present")
	ErrNotInRoster      = errors.New("student is not on the session roster")
	ErrForbidden        = errors.New("caller is not authorized for this session")
	ErrOutOfRange       = errors.New("reported location outside the classroom geofence")
)

// OutOfRangeError carries the computed distance for client display.
type OutOfRangeError struct {
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%v: %.1fm away, allowed %.1fm", ErrOutOfRange, e.DistanceMeters, e.RadiusMeters)
}

// Is makes errors.Is(err, ErrOutOfRange) match.
func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }
