// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrPipelineNotFound indicates a pipeline was not found by id.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrRecordNotFound indicates a record was not found by id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrJobNotFound indicates a job was not found by id.
	ErrJobNotFound = errors.New("job not found")
)

// StoreError wraps storage errors with operation context.
type StoreError struct {
	Op     string // Operation being performed (e.g. "GetByID", "Save")
	Entity string // Entity kind ("pipeline", "record", "job")
	ID     string // Entity id if applicable
	Err    error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a storage error with context.
func NewStoreError(op, entity, id string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Err: err}
}

// IsPipelineNotFound checks if an error indicates a missing pipeline.
func IsPipelineNotFound(err error) bool {
	return errors.Is(err, ErrPipelineNotFound)
}

// IsRecordNotFound checks if an error indicates a missing record.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// IsJobNotFound checks if an error indicates a missing job.
func IsJobNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}
