package services

import (
	"context"
	"fmt"
	"time"

	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/persistence"
	"github.com/fideliza/fideliza/pkg/validation"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Workflow is the application service behind the flow editor: CRUD,
// activation and the A/B test attachment.
type Workflow struct {
	persistence persistence.Persistence
	graph       *validation.Validator
	validate    *validator.Validate
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(p persistence.Persistence, graph *validation.Validator) *Workflow {
	return &Workflow{
		persistence: p,
		graph:       graph,
		validate:    validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	Limit  int `validate:"min=0,max=100"`
	Offset int `validate:"min=0"`

	Status *models.WorkflowStatus
}

// ListWorkflows retrieves workflows with filtering and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) ([]*models.Workflow, error) {
	if req.Limit <= 0 {
		req.Limit = defaultListLimit
	}

	if req.Limit > maxListLimit {
		req.Limit = maxListLimit
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.Status != nil && !validStatus(*req.Status) {
		return nil, NewValidationError(
			"ListWorkflows",
			"INVALID_STATUS",
			fmt.Sprintf("invalid status %q", *req.Status),
			ErrInvalidStatus,
		)
	}

	workflows, err := w.persistence.WorkflowRepository().List(ctx, persistence.ListWorkflowsOptions{
		Status: req.Status,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// FetchByID retrieves the current version of a workflow.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

// FetchVersion retrieves a specific historical version.
func (w *Workflow) FetchVersion(ctx context.Context, id string, version int) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().GetVersion(ctx, id, version)
}

// Create adds a new draft workflow.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, models.ValidationResult, error) {
	if workflow == nil {
		return nil, models.ValidationResult{}, ErrWorkflowNil
	}

	now := time.Now().UTC()
	workflow.ID = uuid.New().String()
	workflow.Version = 1
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusDraft
	}

	if err := w.validate.Struct(workflow); err != nil {
		return nil, models.ValidationResult{}, NewValidationError(
			"Create", "INVALID_DOCUMENT", err.Error(), ErrInvalidRequest)
	}

	result := w.graph.Validate(workflow)
	if !result.OK {
		return nil, result, &ValidationIssuesError{Issues: result.Errors}
	}

	if err := w.persistence.WorkflowRepository().Create(ctx, workflow); err != nil {
		return nil, result, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, result, nil
}

// Update replaces the workflow document. expectedVersion is what the editor
// loaded; a stale editor gets ErrVersionConflict and must refetch. Updating
// an active workflow writes a new version, draft updates stay in place.
func (w *Workflow) Update(
	ctx context.Context,
	workflowID string,
	workflow *models.Workflow,
	expectedVersion int,
) (*models.Workflow, models.ValidationResult, error) {
	if workflow == nil {
		return nil, models.ValidationResult{}, ErrWorkflowNil
	}

	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, models.ValidationResult{}, err
	}

	workflow.ID = workflowID
	workflow.Status = existing.Status
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	if err := w.validate.Struct(workflow); err != nil {
		return nil, models.ValidationResult{}, NewValidationError(
			"Update", "INVALID_DOCUMENT", err.Error(), ErrInvalidRequest)
	}

	result := w.graph.Validate(workflow)
	if !result.OK {
		return nil, result, &ValidationIssuesError{Issues: result.Errors}
	}

	if err := w.persistence.WorkflowRepository().Update(ctx, workflow, expectedVersion); err != nil {
		return nil, result, err
	}

	return workflow, result, nil
}

// Activate validates a draft (or paused) workflow against the full rule set
// and flips it to active. An invalid draft stays untouched; the issues go
// back to the editor.
func (w *Workflow) Activate(ctx context.Context, workflowID string) (*models.Workflow, models.ValidationResult, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, models.ValidationResult{}, err
	}

	switch workflow.Status {
	case models.WorkflowStatusDraft, models.WorkflowStatusPaused:
	case models.WorkflowStatusActive:
		return workflow, models.ValidationResult{OK: true}, nil
	default:
		return nil, models.ValidationResult{}, fmt.Errorf("%w: status is %s", ErrNotActivatable, workflow.Status)
	}

	result := w.graph.ValidateForActivation(workflow)
	if !result.OK {
		return nil, result, &ValidationIssuesError{Issues: result.Errors}
	}

	workflow.Status = models.WorkflowStatusActive
	workflow.UpdatedAt = time.Now().UTC()

	if err := w.persistence.WorkflowRepository().Update(ctx, workflow, workflow.Version); err != nil {
		return nil, result, err
	}

	return workflow, result, nil
}

// Pause takes an active workflow out of trigger evaluation without losing
// its document or its in-flight runs.
func (w *Workflow) Pause(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidStatus, workflow.Status)
	}

	workflow.Status = models.WorkflowStatusPaused
	workflow.UpdatedAt = time.Now().UTC()

	if err := w.persistence.WorkflowRepository().Update(ctx, workflow, workflow.Version); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Archive soft-deletes. In-flight runs are not cancelled; the evaluator
// simply stops seeing the workflow.
func (w *Workflow) Archive(ctx context.Context, workflowID string) error {
	return w.persistence.WorkflowRepository().Archive(ctx, workflowID)
}

// AttachABTest stores an experiment variant on the workflow. Execution of
// the split belongs to the experimentation subsystem; this only persists the
// configuration.
func (w *Workflow) AttachABTest(ctx context.Context, workflowID string, config *models.ABTestConfig) (*models.Workflow, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: missing config", ErrInvalidABTest)
	}

	if err := w.validate.Struct(config); err != nil {
		return nil, NewValidationError(
			"AttachABTest", "INVALID_AB_TEST", err.Error(), ErrInvalidABTest)
	}

	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	workflow.ABTest = config
	workflow.UpdatedAt = time.Now().UTC()

	if err := w.persistence.WorkflowRepository().Update(ctx, workflow, workflow.Version); err != nil {
		return nil, err
	}

	return workflow, nil
}

// WorkflowMetrics aggregates run outcomes for one workflow.
type WorkflowMetrics struct {
	WorkflowID string                  `json:"workflow_id"`
	Total      int                     `json:"total"`
	ByState    map[models.RunState]int `json:"by_state"`
}

// Metrics computes the aggregated run outcome counts the analytics view
// renders.
func (w *Workflow) Metrics(ctx context.Context, workflowID string) (*WorkflowMetrics, error) {
	if _, err := w.persistence.WorkflowRepository().GetByID(ctx, workflowID); err != nil {
		return nil, err
	}

	counts, err := w.persistence.RunRepository().CountByState(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate runs: %w", err)
	}

	metrics := &WorkflowMetrics{
		WorkflowID: workflowID,
		ByState:    counts,
	}

	for _, n := range counts {
		metrics.Total += n
	}

	return metrics, nil
}

func validStatus(status models.WorkflowStatus) bool {
	switch status {
	case models.WorkflowStatusDraft,
		models.WorkflowStatusActive,
		models.WorkflowStatusPaused,
		models.WorkflowStatusArchived:
		return true
	default:
		return false
	}
}
