package jobs

import (
	"errors"
	"fmt"
)

// ErrNoSeeds indicates a submission with an empty seed batch.
var ErrNoSeeds = errors.New("at least one seed is required")

// ConflictError indicates a job submission was rejected because another
// job is still running. At most one job runs at a time.
type ConflictError struct {
	ActiveJobID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("a job is already running: %s", e.ActiveJobID)
}

// IsConflict checks whether the error is a job conflict.
func IsConflict(err error) bool {
	var conflict *ConflictError

	return errors.As(err, &conflict)
}
