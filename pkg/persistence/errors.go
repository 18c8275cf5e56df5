// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound indicates no workflow exists for the identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowVersionNotFound indicates the requested historical
	// version does not exist.
	ErrWorkflowVersionNotFound = errors.New("workflow version not found")

	// ErrVersionConflict indicates the stored version moved since the
	// caller loaded the document. The caller must reload and reapply.
	ErrVersionConflict = errors.New("workflow version conflict")

	// ErrWorkflowArchived indicates a write against a soft-deleted
	// workflow.
	ErrWorkflowArchived = errors.New("workflow is archived")

	// ErrRunNotFound indicates no run exists for the identifier.
	ErrRunNotFound = errors.New("run not found")

	// ErrCorruptedWorkflow indicates a persisted document failed to
	// decode. Fatal for that load only.
	ErrCorruptedWorkflow = errors.New("corrupted workflow document")
)

// WorkflowError wraps workflow storage errors with operation context.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// RunError wraps run storage errors with operation context.
type RunError struct {
	Op    string
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewRunError(op, runID string, err error) *RunError {
	return &RunError{Op: op, RunID: runID, Err: err}
}

func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) || errors.Is(err, ErrWorkflowVersionNotFound)
}

func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

func IsWorkflowArchived(err error) bool {
	return errors.Is(err, ErrWorkflowArchived)
}
