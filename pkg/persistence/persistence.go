// Package persistence provides the storage abstraction for workflow
// documents and run history.
package persistence

import (
	"context"
	"time"

	"github.com/fideliza/fideliza/pkg/models"
)

// ListWorkflowsOptions filters and pages workflow listings.
type ListWorkflowsOptions struct {
	Status *models.WorkflowStatus
	Limit  int
	Offset int
}

// WorkflowRepository stores workflow documents with immutable version
// history. The current version is what listings and the editor see; older
// versions stay readable for in-flight runs.
type WorkflowRepository interface {
	List(ctx context.Context, opts ListWorkflowsOptions) ([]*models.Workflow, error)
	Create(ctx context.Context, workflow *models.Workflow) error

	// GetByID returns the current version.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)

	// GetVersion returns a specific historical version.
	GetVersion(ctx context.Context, id string, version int) (*models.Workflow, error)

	// Update persists the workflow. expectedVersion is the version the
	// caller loaded; if the stored current version moved, the update is
	// rejected with ErrVersionConflict and nothing is written. When the
	// stored workflow is active the update is copy-on-write: the incoming
	// document is persisted as version expectedVersion+1 and becomes
	// current, prior versions retained.
	Update(ctx context.Context, workflow *models.Workflow, expectedVersion int) error

	// Archive soft-deletes: status becomes archived, runs are retained.
	Archive(ctx context.Context, id string) error
}

// RunRepository stores execution history. Owned by the engine.
type RunRepository interface {
	Save(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, id string) (*models.Run, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Run, error)

	// DueDelayed returns waiting_delay runs whose resume_at is not after
	// the given instant. The delay-scheduler sweep feeds from this.
	DueDelayed(ctx context.Context, before time.Time) ([]*models.Run, error)

	// CountByState aggregates run outcomes for a workflow's metrics view.
	CountByState(ctx context.Context, workflowID string) (map[models.RunState]int, error)
}

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	RunRepository() RunRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
