package timer

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is the sentinel matched by errors.Is for any rejected
// state transition. The concrete error carries the attempted operation and
// the phase that rejected it.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrBellIndex is returned when a bell operation references a schedule slot
// that does not exist.
var ErrBellIndex = errors.New("bell index out of range")

// ErrInvalidDuration is returned by Configure when a count-down session is
// given a non-positive duration.
var ErrInvalidDuration = errors.New("duration must be positive for count-down")

// InvalidTransitionError reports a command that is not valid in the session's
// current phase. The session state is unchanged when this is returned.
type InvalidTransitionError struct {
	Op    string
	Phase Phase
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s not allowed in phase %s", e.Op, e.Phase)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func invalidTransition(op string, phase Phase) error {
	return &InvalidTransitionError{Op: op, Phase: phase}
}
