// Package pipeline validates and executes pipeline definitions.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/loomhq/loom/pkg/registry"
)

// ErrorKind discriminates the pipeline error taxonomy. The values are
// the wire-level "kind" strings of the API error shape.
type ErrorKind string

const (
	// KindValidation covers structural problems found before execution:
	// unresolved types, an empty pipeline, missing required config.
	KindValidation ErrorKind = "PipelineValidationError"

	// KindBlockExecution covers a block raising an error or its input
	// contract going unmet during a run.
	KindBlockExecution ErrorKind = "BlockExecutionError"

	// KindOutputValidation covers a block returning keys that do not
	// exactly match its declared outputs.
	KindOutputValidation ErrorKind = "ValidationError"

	// KindBlockNotFound covers registry lookup failures.
	KindBlockNotFound ErrorKind = "BlockNotFoundError"
)

// Error is the structured error carried by every pipeline failure. The
// detail map gives callers enough context to distinguish "fix your
// pipeline" from "this one record failed".
type Error struct {
	Kind    ErrorKind
	Message string
	Detail  map[string]any
	err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

// AsError unwraps err into a pipeline *Error, if it is one.
func AsError(err error) (*Error, bool) {
	var pErr *Error
	ok := errors.As(err, &pErr)

	return pErr, ok
}

// IsKind reports whether err is a pipeline Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	pErr, ok := AsError(err)

	return ok && pErr.Kind == kind
}

func newValidationError(issues []string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf("pipeline definition is invalid: %d problem(s) found", len(issues)),
		Detail:  map[string]any{"issues": issues},
	}
}

func newBlockNotFoundError(index int, err *registry.NotFoundError) *Error {
	return &Error{
		Kind:    KindBlockNotFound,
		Message: err.Error(),
		Detail: map[string]any{
			"block_index":      index,
			"block_type":       err.Type,
			"available_blocks": err.Available,
		},
		err: err,
	}
}

func newBlockExecutionError(index int, blockType string, cause error, state map[string]any) *Error {
	return &Error{
		Kind:    KindBlockExecution,
		Message: fmt.Sprintf("block %d (%s) failed: %v", index, blockType, cause),
		Detail: map[string]any{
			"block_index": index,
			"block_type":  blockType,
			"error":       cause.Error(),
			"state":       state,
		},
		err: cause,
	}
}

func newMissingInputError(index int, blockType string, missing []string, state map[string]any) *Error {
	return &Error{
		Kind:    KindBlockExecution,
		Message: fmt.Sprintf("block %d (%s) missing required input key '%s'", index, blockType, missing[0]),
		Detail: map[string]any{
			"block_index":  index,
			"block_type":   blockType,
			"missing_keys": missing,
			"state":        state,
		},
	}
}

func newOutputValidationError(index int, blockType string, extra, missing []string) *Error {
	return &Error{
		Kind: KindOutputValidation,
		Message: fmt.Sprintf(
			"block %d (%s) returned outputs not matching its contract (extra: %v, missing: %v)",
			index, blockType, extra, missing,
		),
		Detail: map[string]any{
			"block_index":  index,
			"block_type":   blockType,
			"extra_keys":   extra,
			"missing_keys": missing,
		},
	}
}
