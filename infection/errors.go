package infection

import (
	"errors"
	"fmt"
)

var (
	// ErrRangeExceeded is matched by errors returned from InfectRange when
	// the accumulated components hold more users than the requested maximum.
	ErrRangeExceeded = errors.New("range exceeded")

	// ErrInvalidRange is returned when InfectRange receives a negative
	// minimum or a minimum larger than the maximum.
	ErrInvalidRange = errors.New("invalid range")
)

// RangeExceededError reports a range-bounded infection that was rejected
// because whole components could not be combined into the requested band. No
// user has been modified when this error is returned.
type RangeExceededError struct {
	// The number of users accumulated before the attempt was rejected.
	Accumulated int

	// The requested band.
	Min, Max int
}

// Error implements error.
func (e *RangeExceededError) Error() string {
	return fmt.Sprintf("%s: accumulated %d users, wanted between %d and %d", ErrRangeExceeded, e.Accumulated, e.Min, e.Max)
}

// Is allows RangeExceededError to be matched against ErrRangeExceeded.
func (e *RangeExceededError) Is(target error) bool {
	return target == ErrRangeExceeded
}
