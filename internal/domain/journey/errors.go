package journey

import (
	"errors"
	"fmt"
)

// ErrNotFound marks an unknown journey id.
var ErrNotFound = errors.New("not found")

// InvalidTransitionError rejects a state-machine operation invoked from a
// phase that does not permit it. State is left unchanged.
type InvalidTransitionError struct {
	From      Phase
	Attempted Phase
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.Attempted)
}
