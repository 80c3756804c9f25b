package orders

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("actor does not own this resource")
	ErrInvalidInput = errors.New("invalid input")
)

// TransitionError is returned when a status change is not in the transition table.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// StateError is returned when an operation needs a status precondition that is not met.
type StateError struct {
	Op      string
	Current Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("order status %s does not allow %s", e.Current, e.Op)
}

func IsInvalidTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

func IsInvalidState(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}
