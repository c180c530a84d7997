package station

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a station, queue entry, equipment item or
// alert id is unknown.
var ErrNotFound = errors.New("not found")

// AlreadyQueuedError is returned when an admission would give a patient a
// second concurrent queue entry. StationID names the station holding the
// existing entry.
type AlreadyQueuedError struct {
	PatientID uuid.UUID
	StationID string
}

func (e *AlreadyQueuedError) Error() string {
	return fmt.Sprintf("patient %s already queued at station %s", e.PatientID, e.StationID)
}
