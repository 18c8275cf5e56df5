// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/persistence"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrInvalidStatus        = errors.New("invalid workflow status")
	ErrWorkflowInvalid      = errors.New("workflow failed validation")
	ErrInvalidABTest        = errors.New("invalid ab test configuration")

	// Business logic conflicts (409 Conflict).
	ErrVersionConflict    = persistence.ErrVersionConflict
	ErrWorkflowArchived   = persistence.ErrWorkflowArchived
	ErrNotActivatable     = errors.New("workflow status does not allow activation")
	ErrRunAlreadyFinished = errors.New("run already reached a terminal state")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// ValidationIssuesError carries the validator's issue list so the API can
// return it verbatim to the editor.
type ValidationIssuesError struct {
	Issues []models.Issue
}

func (e *ValidationIssuesError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, fmt.Sprintf("%s: %s", issue.Code, issue.Message))
	}

	return "workflow failed validation: " + strings.Join(msgs, "; ")
}

func (e *ValidationIssuesError) Is(target error) bool {
	return errors.Is(ErrWorkflowInvalid, target)
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrWorkflowInvalid) ||
		errors.Is(err, ErrInvalidABTest)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrWorkflowArchived) ||
		errors.Is(err, ErrNotActivatable) ||
		errors.Is(err, ErrRunAlreadyFinished)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
