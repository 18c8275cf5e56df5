package services

import (
	"context"
	"fmt"
	"time"

	"github.com/fideliza/fideliza/pkg/eventbus"
	"github.com/fideliza/fideliza/pkg/events"
	"github.com/fideliza/fideliza/pkg/models"
	"github.com/fideliza/fideliza/pkg/persistence"
	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run is not found.
var ErrRunNotFound = persistence.ErrRunNotFound

// Runs serves the run history views and the explicit cancellation request.
type Runs struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
}

// NewRuns creates a new run service. publisher may be nil; cancellation then
// happens without a bus announcement.
func NewRuns(p persistence.Persistence, publisher eventbus.EventPublisher) *Runs {
	return &Runs{
		persistence: p,
		publisher:   publisher,
	}
}

// FetchByID retrieves a run with its full step history.
func (r *Runs) FetchByID(ctx context.Context, id string) (*models.Run, error) {
	return r.persistence.RunRepository().GetByID(ctx, id)
}

// ListByWorkflow retrieves every run of a workflow, any version.
func (r *Runs) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Run, error) {
	runs, err := r.persistence.RunRepository().ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// Cancel terminates a run on explicit request. A run in waiting_delay is
// pre-empted; a terminal run is rejected with a conflict.
func (r *Runs) Cancel(ctx context.Context, runID, reason string) (*models.Run, error) {
	run, err := r.persistence.RunRepository().GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	if run.State.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrRunAlreadyFinished, run.ID, run.State)
	}

	now := time.Now().UTC()
	run.State = models.RunStateCancelled
	run.ResumeAt = nil
	run.FinishedAt = &now

	if err := r.persistence.RunRepository().Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to cancel run: %w", err)
	}

	if r.publisher != nil {
		event := events.RunCancelled{
			BaseEvent: events.BaseEvent{
				ID:         uuid.New().String(),
				Type:       events.RunCancelledEvent,
				Timestamp:  now,
				WorkflowID: run.WorkflowID,
			},
			RunID:  run.ID,
			Reason: reason,
		}

		// Best effort: the persisted state is authoritative.
		_ = r.publisher.Publish(ctx, run.WorkflowID, event)
	}

	return run, nil
}
